package lock

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/lock"
	"github.com/ValentinKolb/dLock/lib/store"
	"github.com/ValentinKolb/dLock/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcRecordStore store.IRecordStore

	acquireLeaseSec   uint64
	acquireMaxWaitSec uint64
	acquireData       string
	acquireSkipWait   bool
	acquireHold       bool

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Perform lock operations",
		PersistentPreRunE: setupLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Long:  "Acquire a lock on the given key. With --hold the lock is heartbeated until the process receives SIGINT or SIGTERM, otherwise the acquired version number is printed and the process exits (the lock then lapses after its lease).",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key. The --owner flag must match the owner name the lock was acquired with.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}

	// heartbeatCmd represents the heartbeat command
	heartbeatCmd = &cobra.Command{
		Use:   "heartbeat [key]",
		Short: "Renew the lease on a held lock",
		Long:  "Send a single heartbeat for the lock on the given key, rotating its version number and restarting its lease window. The --owner flag must match the owner name the lock was acquired with.",
		Args:  cobra.ExactArgs(1),
		RunE:  runHeartbeat,
	}

	// statusCmd represents the status command
	statusCmd = &cobra.Command{
		Use:   "status [key]",
		Short: "Show the current state of a lock record",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)
	LockCommands.AddCommand(heartbeatCmd)
	LockCommands.AddCommand(statusCmd)

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	// Set default shard ID for lock operations
	LockCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	// Owner identity used for acquire and release
	LockCommands.PersistentFlags().String("owner", "", util.WrapString("Owner name used as lock identity (defaults to hostname plus a random suffix)"))

	// Add flags specific to acquire
	acquireCmd.Flags().Uint64Var(&acquireLeaseSec, "lease", 30, "Lease duration in seconds")
	acquireCmd.Flags().Uint64Var(&acquireMaxWaitSec, "max-wait", 0, "How long to wait for a contended lock in seconds (0 uses lease plus two refresh periods)")
	acquireCmd.Flags().StringVar(&acquireData, "data", "", "Payload to store in the lock record")
	acquireCmd.Flags().BoolVar(&acquireSkipWait, "skip-wait", false, "Fail immediately if the lock is held instead of polling")
	acquireCmd.Flags().BoolVar(&acquireHold, "hold", false, "Keep the lock and heartbeat it until SIGINT/SIGTERM")
}

// setupLockClient initializes the remote record store used by all lock commands
func setupLockClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the record store client
	rpcRecordStore, err = client.NewRPCRecordStore(
		shardId,
		*config,
		t,
		s,
	)

	return err
}

// newLockClient creates a lock client on top of the remote record store
func newLockClient(withHeartbeats bool) (lock.ILockClient, error) {
	var identity lock.IIdentity
	if owner := viper.GetString("owner"); owner != "" {
		identity = lock.NewStaticIdentity(owner)
	} else {
		identity = lock.NewHostIdentity()
	}

	return lock.NewLockClient(lock.LockClientConfig{
		Store:                           rpcRecordStore,
		Identity:                        identity,
		LeaseDuration:                   time.Duration(acquireLeaseSec) * time.Second,
		CreateHeartbeatBackgroundThread: withHeartbeats,
	})
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	key := args[0]

	lockClient, err := newLockClient(acquireHold)
	if err != nil {
		return err
	}

	opts := lock.AcquireLockOptions{
		Key:                    key,
		MaxWaitTime:            time.Duration(acquireMaxWaitSec) * time.Second,
		ShouldSkipBlockingWait: acquireSkipWait,
	}
	if acquireData != "" {
		opts.Data = []byte(acquireData)
		opts.ReplaceData = true
	}

	item, err := lockClient.AcquireLock(opts)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	fmt.Printf("acquired=true, owner=%s, version=%s\n", item.Owner(), item.RecordVersionNumber())

	// Without --hold the lock is left to lapse after its lease.
	// Closing the client would release it, so we just exit.
	if !acquireHold {
		return nil
	}
	defer lockClient.Close()

	// Hold the lock until the process is signalled, heartbeats run in the background
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("holding lock, press Ctrl+C to release...")
	for {
		select {
		case err := <-lockClient.HeartbeatErrors():
			fmt.Printf("heartbeat error: %v\n", err)
			if lock.IsLockNotGranted(err) {
				return fmt.Errorf("lock was lost: %v", err)
			}
		case <-sigCh:
			released, err := lockClient.ReleaseLock(lock.ReleaseLockOptions{LockItem: item})
			if err != nil {
				return fmt.Errorf("failed to release lock: %v", err)
			}
			fmt.Printf("released=%v\n", released)
			return nil
		}
	}
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	key := args[0]

	if viper.GetString("owner") == "" {
		return fmt.Errorf("the --owner flag is required for release")
	}

	lockClient, err := newLockClient(false)
	if err != nil {
		return err
	}
	defer lockClient.Close()

	// Fetch the current record and release it
	item, found, err := lockClient.GetLockFromStore(key, "")
	if err != nil {
		return fmt.Errorf("failed to look up lock: %v", err)
	}
	if !found {
		fmt.Println("released=false (no such lock)")
		return nil
	}

	released, err := lockClient.ReleaseLock(lock.ReleaseLockOptions{LockItem: item})
	if err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Printf("released=%v\n", released)
	return nil
}

// runHeartbeat handles the heartbeat command
func runHeartbeat(_ *cobra.Command, args []string) error {
	key := args[0]

	if viper.GetString("owner") == "" {
		return fmt.Errorf("the --owner flag is required for heartbeat")
	}

	lockClient, err := newLockClient(false)
	if err != nil {
		return err
	}
	defer lockClient.Close()

	// Fetch the current record and renew it under the configured identity
	item, found, err := lockClient.GetLockFromStore(key, "")
	if err != nil {
		return fmt.Errorf("failed to look up lock: %v", err)
	}
	if !found {
		return fmt.Errorf("no lock record for %q", key)
	}

	if err := lockClient.SendHeartbeat(lock.SendHeartbeatOptions{LockItem: item}); err != nil {
		return fmt.Errorf("failed to send heartbeat: %v", err)
	}

	fmt.Printf("renewed=true, owner=%s, version=%s\n", item.Owner(), item.RecordVersionNumber())
	return nil
}

// runStatus handles the status command
func runStatus(_ *cobra.Command, args []string) error {
	key := args[0]

	rec, found, err := rpcRecordStore.GetRecord(store.StorageKey(key, ""))
	if err != nil {
		return fmt.Errorf("failed to read lock record: %v", err)
	}
	if !found {
		fmt.Printf("key=%s, found=false\n", key)
		return nil
	}

	fmt.Printf("key=%s, found=true\n", key)
	fmt.Printf("owner=%s\n", rec.Owner)
	fmt.Printf("version=%s\n", rec.VersionNumber)
	fmt.Printf("released=%v\n", rec.IsReleased)
	fmt.Printf("lease=%s\n", rec.LeaseDuration)
	if len(rec.Data) > 0 {
		fmt.Printf("data=%s\n", rec.Data)
	}
	return nil
}
