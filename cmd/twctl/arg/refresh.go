package arg

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"tabwarden/internal/ipc"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force an immediate refetch of the goal domain lists",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj, err := manager()
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()

		var counts string
		if err := obj.Call(ipc.InterfaceName+".RefreshDomainCache", 0).Store(&counts); err != nil {
			log.Fatal("Failed to refresh domain cache:", err)
		}
		fmt.Printf("Domain cache refreshed (allowed/rejected: %s)\n", counts)
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
