package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canopyledger/wallet-trust/pkg/client"
)

// version is overridden at release time via -ldflags "-X main.version=...".
var version = "dev"

var (
	serviceURL string
	authToken  string
	cfgFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trustctl",
	Short: "Wallet trust service CLI",
	Long: `trustctl is the command-line interface for the wallet trust service.

It lets a wallet log in, request trust relationships with other wallets,
and accept, decline, or cancel pending requests.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.trustctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serviceURL == "" {
			serviceURL = viper.GetString("service_url")
		}
		if serviceURL == "" {
			serviceURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.trustctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service", "", "trust service URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "wallet session token (default from config or TOKEN env)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(declineCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(walletsCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	c := client.New(serviceURL)
	if authToken != "" {
		c.SetToken(authToken)
	}
	return c
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// ── login ────────────────────────────────────────────────────────────────────

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <wallet-name>",
	Short: "Log in as a wallet and print a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		token, err := newClient().Login(ctx, args[0], loginPassword)
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Fprintln(os.Stderr, "pass this via --token or save it as 'token' in ~/.trustctl/config.yaml")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "wallet password")
	loginCmd.MarkFlagRequired("password") //nolint:errcheck
}

// ── request ──────────────────────────────────────────────────────────────────

var requestOnBehalfOf string

var requestCmd = &cobra.Command{
	Use:   "request <send|manage|yield> <requestee-wallet>",
	Short: "Request a trust relationship with another wallet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		tr, err := newClient().CreateTrustRelationship(ctx, args[0], args[1], requestOnBehalfOf)
		if err != nil {
			return err
		}
		fmt.Printf("requested: %s (%s, state %s)\n", tr.ID, tr.RequestType, tr.State)
		return nil
	},
}

func init() {
	requestCmd.Flags().StringVar(&requestOnBehalfOf, "on-behalf-of", "", "requester wallet name (defaults to the logged-in wallet)")
}

// ── accept / decline / cancel ────────────────────────────────────────────────

var acceptCmd = &cobra.Command{
	Use:   "accept <relationship-id>",
	Short: "Accept a pending trust request sent to your wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		tr, err := newClient().AcceptTrustRelationship(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("accepted: %s is now %s\n", tr.ID, tr.State)
		return nil
	},
}

var declineCmd = &cobra.Command{
	Use:   "decline <relationship-id>",
	Short: "Decline a pending trust request sent to your wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		tr, err := newClient().DeclineTrustRelationship(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("declined: %s is now %s\n", tr.ID, tr.State)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <relationship-id>",
	Short: "Cancel a pending trust request your wallet originated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		tr, err := newClient().CancelTrustRelationship(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("canceled: %s is now %s\n", tr.ID, tr.State)
		return nil
	},
}

// ── list ─────────────────────────────────────────────────────────────────────

var (
	listState       string
	listRequestType string
	listAll         bool
	listLimit       int
	listOffset      int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List trust relationships for your wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		rels, err := newClient().ListTrustRelationships(ctx, client.ListOptions{
			State:       listState,
			RequestType: listRequestType,
			All:         listAll,
			Limit:       listLimit,
			Offset:      listOffset,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATE\tACTOR\tTARGET")
		for _, tr := range rels {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				tr.ID, tr.RequestType, tr.State, tr.ActorWalletID, tr.TargetWalletID)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listState, "state", "", "filter by state")
	listCmd.Flags().StringVar(&listRequestType, "request-type", "", "filter by request type")
	listCmd.Flags().BoolVar(&listAll, "all", false, "span the wallet's full controlled hierarchy")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "page size")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "page offset")
}

// ── wallets ──────────────────────────────────────────────────────────────────

var walletsName string

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "List your wallet and every wallet it controls",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		wallets, err := newClient().ListWallets(ctx, walletsName, 0, 0)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED")
		for _, wl := range wallets {
			fmt.Fprintf(w, "%s\t%s\t%s\n", wl.ID, wl.Name, wl.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	walletsCmd.Flags().StringVar(&walletsName, "name", "", "case-insensitive name substring filter")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the trustctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("trustctl", version)
	},
}
