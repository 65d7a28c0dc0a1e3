package arg

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"tabwarden/internal/ipc"
)

var profileID string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the daemon's login session",
}

var sessionSaveCmd = &cobra.Command{
	Use:   "save <access-token>",
	Short: "Store an access token in the daemon",
	Long: `Store an access token in the daemon. The profile id is resolved from
the token automatically; pass --profile to set it explicitly.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj, err := manager()
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()

		call := obj.Call(ipc.InterfaceName+".SaveSession", 0, args[0], profileID)
		if call.Err != nil {
			log.Fatal("Failed to save session:", call.Err)
		}
		fmt.Println("Session saved")
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Log the daemon out",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj, err := manager()
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()

		call := obj.Call(ipc.InterfaceName+".ClearSession", 0)
		if call.Err != nil {
			log.Fatal("Failed to clear session:", call.Err)
		}
		fmt.Println("Session cleared")
	},
}

func init() {
	sessionSaveCmd.Flags().StringVarP(&profileID, "profile", "p", "", "Profile id (resolved from the token when omitted)")
	sessionCmd.AddCommand(sessionSaveCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
