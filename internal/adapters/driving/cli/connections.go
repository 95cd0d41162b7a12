package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Aliases: []string{"conn"},
	Short:   "Manage connections",
	Long:    `List, add and remove configured provider connections.`,
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured connections",
	Args:  cobra.NoArgs,
	RunE:  runConnectionsList,
}

var connectionsTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List supported connector types",
	Args:  cobra.NoArgs,
	RunE:  runConnectionsTypes,
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a connection",
	Long: `Adds a connection to the config file, replacing any connection with
the same ID. Missing values are prompted for when stdin is a terminal.

Example:
  syncd connections add --type github --id work-gh --token ghp_xxx \
    --set repos=acme/api,acme/web`,
	Args: cobra.NoArgs,
	RunE: runConnectionsAdd,
}

var connectionsRemoveCmd = &cobra.Command{
	Use:   "remove [connection-id]",
	Short: "Remove a connection",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnectionsRemove,
}

// Connection add flags.
var (
	connAddType     string
	connAddID       string
	connAddName     string
	connAddToken    string
	connAddSettings map[string]string
)

// promptInput is where interactive answers are read from.
var promptInput io.Reader = os.Stdin

func init() {
	connectionsAddCmd.Flags().StringVar(&connAddType, "type", "", "connector type (see 'syncd connections types')")
	connectionsAddCmd.Flags().StringVar(&connAddID, "id", "", "connection ID")
	connectionsAddCmd.Flags().StringVar(&connAddName, "name", "", "display name")
	connectionsAddCmd.Flags().StringVar(&connAddToken, "token", "", "access token")
	connectionsAddCmd.Flags().StringToStringVar(&connAddSettings, "set", nil, "connector setting as key=value (repeatable)")

	connectionsCmd.AddCommand(connectionsListCmd)
	connectionsCmd.AddCommand(connectionsTypesCmd)
	connectionsCmd.AddCommand(connectionsAddCmd)
	connectionsCmd.AddCommand(connectionsRemoveCmd)
	rootCmd.AddCommand(connectionsCmd)
}

func runConnectionsList(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd, OpenOptions{})
	if err != nil {
		return err
	}
	if svc.Connections == nil {
		return errors.New("connection store not configured")
	}

	conns, err := svc.Connections.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing connections: %w", err)
	}
	if len(conns) == 0 {
		cmd.Println("No connections configured. Add one with 'syncd connections add'.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	rows := make([][]string, len(conns))
	for i, c := range conns {
		rows[i] = []string{c.ID, c.Type, c.DisplayName(), fmt.Sprint(len(c.Settings))}
	}
	cmd.Println(st.table([]string{"ID", "TYPE", "NAME", "SETTINGS"}, rows))
	return nil
}

func runConnectionsTypes(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd, OpenOptions{})
	if err != nil {
		return err
	}
	if svc.Connectors == nil {
		return errors.New("connector factory not configured")
	}

	st := newStyles(cmd.OutOrStdout())
	for _, t := range svc.Connectors.SupportedTypes() {
		cmd.Printf("%s  %s\n", st.Title.Render(t.ID), t.Name)
		if t.Description != "" {
			cmd.Printf("  %s\n", st.Muted.Render(t.Description))
		}
		if caps := capabilityList(t.Capabilities); caps != "" {
			cmd.Printf("  capabilities: %s\n", caps)
		}
		for _, key := range t.ConfigKeys {
			line := fmt.Sprintf("  --set %s=...  %s", key.Key, key.Description)
			if key.Required {
				line += " (required)"
			} else if key.Default != "" {
				line += fmt.Sprintf(" (default %s)", key.Default)
			}
			cmd.Println(line)
		}
		cmd.Println()
	}
	return nil
}

func capabilityList(c domain.Capabilities) string {
	var caps []string
	if c.Webhooks {
		caps = append(caps, "webhooks")
	}
	if c.WatchRenewal {
		caps = append(caps, "watch renewal")
	}
	if c.DeltaSync {
		caps = append(caps, "delta sync")
	}
	if c.Comments {
		caps = append(caps, "comments")
	}
	return strings.Join(caps, ", ")
}

func runConnectionsAdd(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd, OpenOptions{})
	if err != nil {
		return err
	}
	if svc.Editor == nil {
		return errors.New("connections are read-only")
	}

	conn := domain.Connection{
		ID:       connAddID,
		Type:     connAddType,
		Name:     connAddName,
		Token:    connAddToken,
		Settings: map[string]string{},
	}
	for k, v := range connAddSettings {
		conn.Settings[k] = v
	}

	var types []domain.ConnectorType
	if svc.Connectors != nil {
		types = svc.Connectors.SupportedTypes()
	}

	if isInteractive() {
		if err := promptConnection(cmd, bufio.NewReader(promptInput), &conn, types); err != nil {
			return err
		}
	}
	if err := validateConnection(conn, types); err != nil {
		return err
	}

	if err := svc.Editor.PutConnection(conn); err != nil {
		return fmt.Errorf("saving connection: %w", err)
	}
	cmd.Printf("Connection %s (%s) saved.\n", conn.ID, conn.Type)
	return nil
}

// promptConnection asks for every value not given by flags.
func promptConnection(cmd *cobra.Command, reader *bufio.Reader, conn *domain.Connection, types []domain.ConnectorType) error {
	if conn.Type == "" {
		cmd.Println("Available connector types:")
		for i, t := range types {
			cmd.Printf("  %d. %s (%s)\n", i+1, t.ID, t.Name)
		}
		cmd.Print("\nSelect type number: ")
		choice := parseChoice(readLine(reader), len(types), 0)
		if choice == 0 {
			return fmt.Errorf("%w: no connector type selected", domain.ErrInvalidInput)
		}
		conn.Type = types[choice-1].ID
	}
	if conn.ID == "" {
		cmd.Printf("Connection ID [%s]: ", conn.Type)
		conn.ID = readLine(reader)
		if conn.ID == "" {
			conn.ID = conn.Type
		}
	}
	if conn.Name == "" {
		cmd.Print("Display name (optional): ")
		conn.Name = readLine(reader)
	}
	if conn.Token == "" {
		cmd.Print("Access token (leave empty for OAuth refresh settings): ")
		conn.Token = readPassword(reader)
		cmd.Println()
	}

	t, ok := findType(types, conn.Type)
	if !ok {
		return nil
	}
	for _, key := range t.ConfigKeys {
		if _, set := conn.Settings[key.Key]; set {
			continue
		}
		prompt := key.Description
		if key.Default != "" {
			prompt += fmt.Sprintf(" [%s]", key.Default)
		}
		cmd.Printf("%s (%s): ", prompt, key.Key)
		if v := readLine(reader); v != "" {
			conn.Settings[key.Key] = v
		}
	}
	return nil
}

// validateConnection checks the type is supported and required settings
// are present.
func validateConnection(conn domain.Connection, types []domain.ConnectorType) error {
	if conn.ID == "" || conn.Type == "" {
		return fmt.Errorf("%w: --id and --type are required", domain.ErrInvalidInput)
	}
	if len(types) == 0 {
		return nil
	}
	t, ok := findType(types, conn.Type)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedType, conn.Type)
	}
	for _, key := range t.ConfigKeys {
		if key.Required && conn.Setting(key.Key, "") == "" {
			return fmt.Errorf("%w: setting %q is required for %s", domain.ErrInvalidInput, key.Key, conn.Type)
		}
	}
	return nil
}

func findType(types []domain.ConnectorType, id string) (domain.ConnectorType, bool) {
	for _, t := range types {
		if t.ID == id {
			return t, true
		}
	}
	return domain.ConnectorType{}, false
}

func runConnectionsRemove(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd, OpenOptions{})
	if err != nil {
		return err
	}
	if svc.Editor == nil {
		return errors.New("connections are read-only")
	}
	if err := svc.Editor.RemoveConnection(args[0]); err != nil {
		return err
	}
	cmd.Printf("Connection %s removed. Disable its channels first to clean up provider webhooks.\n", args[0])
	return nil
}

func isInteractive() bool {
	f, ok := promptInput.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n') //nolint:errcheck // EOF yields what was read
	return strings.TrimSpace(line)
}

// parseChoice parses a 1-based menu choice, returning defaultVal when the
// input is empty or out of range.
func parseChoice(input string, maxVal, defaultVal int) int {
	var n int
	if _, err := fmt.Sscanf(input, "%d", &n); err != nil || n < 1 || n > maxVal {
		return defaultVal
	}
	return n
}

// readPassword reads without echo when stdin is a terminal.
func readPassword(reader *bufio.Reader) string {
	if f, ok := promptInput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(reader)
}
