// Command client drives a key holder's two operations against a host:
// registering a detection-key share over an RA-TLS handshake, and
// querying a registered share's most recent encrypted index set across
// every host it was shared with.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/anoma/kassandra-service/internal/attestation"
	"github.com/anoma/kassandra-service/internal/cli"
	"github.com/anoma/kassandra-service/internal/clientapi"
	"github.com/anoma/kassandra-service/internal/config"
	"github.com/anoma/kassandra-service/internal/fmd"
	"github.com/anoma/kassandra-service/internal/masp"
	"github.com/anoma/kassandra-service/internal/wire"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "client",
		Short: "Register and query fuzzy-message-detection key shares against Kassandra hosts",
	}

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(uuidCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	dir, err := config.DataDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, config.DefaultClientConfigFile)
}

func registerCmd() *cobra.Command {
	var (
		host       string
		keyHex     string
		fmdKeyHex  string
		birthday   uint64
		hasBday    bool
		configPath string
		mrtd       string
		rtmr0      string
		rtmr1      string
		mock       bool
		dialTO     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a detection-key share with a host over RA-TLS",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseEncKey(keyHex)
			if err != nil {
				return err
			}
			fmdKey, err := parseDetectionKey(fmdKeyHex)
			if err != nil {
				return err
			}
			var bday *uint64
			if hasBday {
				bday = &birthday
			}

			spinner := cli.NewSpinner(fmt.Sprintf("registering with %s", host))
			spinner.Start()

			conn, err := net.DialTimeout("tcp", host, dialTO)
			if err != nil {
				spinner.Error(err.Error())
				return fmt.Errorf("client: dial host %s: %w", host, err)
			}
			defer conn.Close()

			policy := attestation.Policy{MRTD: mrtd, RTMR0: rtmr0, RTMR1: rtmr1}
			var verifier attestation.Verifier = attestation.NewTDX("")
			if mock {
				verifier = attestation.NewMock(policy)
			}
			ctx, cancel := context.WithTimeout(context.Background(), dialTO)
			defer cancel()
			if err := clientapi.RegisterKey(ctx, wire.NewConn(conn), verifier, policy, fmdKey, key, bday); err != nil {
				spinner.Error("handshake failed")
				return fmt.Errorf("client: register key: %w", err)
			}

			if err := config.AddService(configPath, key, host); err != nil {
				spinner.Error("failed to persist service registry")
				return fmt.Errorf("client: persist service registry: %w", err)
			}
			spinner.Success(fmt.Sprintf("registered key %s with %s", key.Hash(), host))
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address (host:port) to register with")
	cmd.Flags().StringVar(&keyHex, "key", "", "Detection-key share's encrypted-response key (EncKey), hex-encoded (32 bytes)")
	cmd.Flags().StringVar(&fmdKeyHex, "fmd-key", "", "This share's derived FMD detection key, hex-encoded")
	cmd.Flags().Uint64Var(&birthday, "birthday", 0, "Height to start the enclave's cursor at for this key, instead of 1")
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the client service registry")
	cmd.Flags().StringVar(&mrtd, "mrtd", "", "Expected MRTD measurement, hex-encoded")
	cmd.Flags().StringVar(&rtmr0, "rtmr0", "", "Expected RTMR0 measurement, hex-encoded")
	cmd.Flags().StringVar(&rtmr1, "rtmr1", "", "Expected RTMR1 measurement, hex-encoded")
	cmd.Flags().BoolVar(&mock, "mock", false, "Verify quotes against the given measurements directly, for use against a transparent development enclave")
	cmd.Flags().DurationVar(&dialTO, "timeout", 10*time.Second, "Dial and handshake timeout")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("fmd-key")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		hasBday = cmd.Flags().Changed("birthday")
		return nil
	}

	return cmd
}

func queryCmd() *cobra.Command {
	var (
		keyHex     string
		configPath string
		dialTO     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query every registered host for a key share's index set and combine the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseEncKey(keyHex)
			if err != nil {
				return err
			}

			services, err := config.GetServices(configPath, key)
			if err != nil {
				return fmt.Errorf("client: load service registry: %w", err)
			}
			if len(services) == 0 {
				return fmt.Errorf("client: key %s is not registered with any service", key.Hash())
			}

			queries := make([]clientapi.ServiceQuery, len(services))
			for i, svc := range services {
				queries[i] = clientapi.ServiceQuery{URL: svc.URL}
			}

			dial := func(url string) (*wire.Conn, error) {
				conn, err := net.DialTimeout("tcp", url, dialTO)
				if err != nil {
					return nil, err
				}
				return wire.NewConn(conn), nil
			}

			cli.Info(fmt.Sprintf("querying %d service(s) for key %s", len(queries), key.Hash()))
			combined, err := clientapi.QueryAll(dial, queries, key)
			if err != nil {
				return fmt.Errorf("client: query services: %w", err)
			}
			cli.Success(fmt.Sprintf("combined %d index entries", len(combined)))
			for _, ix := range combined {
				fmt.Printf("%d %d\n", ix.Height, ix.Tx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyHex, "key", "", "Detection-key share's encrypted-response key (EncKey), hex-encoded (32 bytes)")
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the client service registry")
	cmd.Flags().DurationVar(&dialTO, "timeout", 10*time.Second, "Dial timeout per service")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func uuidCmd() *cobra.Command {
	var (
		host   string
		dialTO time.Duration
	)

	cmd := &cobra.Command{
		Use:   "uuid",
		Short: "Print a host's stable identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := net.DialTimeout("tcp", host, dialTO)
			if err != nil {
				return fmt.Errorf("client: dial host %s: %w", host, err)
			}
			defer conn.Close()

			id, err := clientapi.QueryUUID(wire.NewConn(conn))
			if err != nil {
				return fmt.Errorf("client: query uuid: %w", err)
			}
			fmt.Println(id)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address (host:port) to query")
	cmd.Flags().DurationVar(&dialTO, "timeout", 10*time.Second, "Dial timeout")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

func parseEncKey(keyHex string) (masp.EncKey, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return masp.EncKey{}, fmt.Errorf("client: decode key: %w", err)
	}
	return masp.EncKeyFromBytes(raw)
}

func parseDetectionKey(keyHex string) (fmd.DetectionKey, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("client: decode fmd key: %w", err)
	}
	return fmd.DetectionKey(raw), nil
}
