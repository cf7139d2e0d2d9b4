package cli

import (
	"github.com/spf13/cobra"
)

// configFile is bound to the persistent --config flag
var configFile string

// Version is stamped at build time
var Version = "dev"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "couchdb-idp-updater",
		Short: "Sync IdP signing keys into CouchDB clusters",
		Long: `couchdb-idp-updater keeps CouchDB clusters aligned with the JWT signing
keys advertised by OpenID Connect identity providers.

It periodically resolves each IdP's JWKS via OIDC discovery, converts the
certificate-bound keys to PEM, writes changed keys into the jwt_keys config
section of every cluster node, and requests staggered node restarts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the configuration file")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(Version)
		},
	}
}
