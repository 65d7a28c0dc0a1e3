package arg

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"tabwarden/internal/ipc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check if TabWarden is running and show its state",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj, err := manager()
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()

		var result string
		if err := obj.Call(ipc.InterfaceName+".GetStatus", 0).Store(&result); err != nil {
			log.Fatal("Failed to call method:", err)
		}

		var st ipc.Status
		if err := json.Unmarshal([]byte(result), &st); err != nil {
			log.Fatal("Failed to parse response:", err)
		}

		fmt.Println("TabWarden is running")
		if st.Authenticated {
			fmt.Println("  Session:   authenticated")
			if st.ProfileID != "" {
				fmt.Printf("  Profile:   %s\n", st.ProfileID)
			}
		} else {
			fmt.Println("  Session:   not logged in")
		}
		fmt.Printf("  Install:   %s\n", st.InstallID)
		fmt.Printf("  Tabs:      %d tracked\n", st.TabCount)
		switch {
		case st.SoftBlock.Running && st.SoftBlock.Paused:
			fmt.Printf("  Countdown: paused, %ds left\n", st.SoftBlock.RemainingSecs)
		case st.SoftBlock.Running:
			fmt.Printf("  Countdown: running, %ds left\n", st.SoftBlock.RemainingSecs)
		default:
			fmt.Println("  Countdown: idle")
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
