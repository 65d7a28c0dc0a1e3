package arg

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"tabwarden/internal/ipc"
)

var rootCmd = &cobra.Command{
	Use:   "twctl",
	Short: "twctl is the command line tool for TabWarden",
	Long: `twctl talks to the TabWarden daemon over the session D-Bus.
			You can use it to check status, manage the login session,
			test domains and watch the soft-block countdown.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// manager connects to the session bus and returns the daemon's object.
// The caller owns closing the connection.
func manager() (*dbus.Conn, dbus.BusObject, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return conn, conn.Object(ipc.ServiceName, dbus.ObjectPath(ipc.ObjectPath)), nil
}
