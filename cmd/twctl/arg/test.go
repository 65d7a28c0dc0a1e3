package arg

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"tabwarden/internal/ipc"
)

var testCmd = &cobra.Command{
	Use:   "test <url>",
	Short: "Check whether a URL would be blocked right now",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj, err := manager()
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()

		var blocked bool
		var pattern string
		if err := obj.Call(ipc.InterfaceName+".TestDomain", 0, args[0]).Store(&blocked, &pattern); err != nil {
			log.Fatal("Failed to test domain:", err)
		}

		if blocked {
			fmt.Printf("BLOCKED (matches %q)\n", pattern)
		} else {
			fmt.Println("allowed")
		}
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
