package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/portscout/internal/portset"
	"github.com/anstrom/portscout/internal/profiles"
)

// profilesCmd represents the profiles command.
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in scan presets",
	Long: `Display the built-in scan presets. Each preset bundles a port
list with worker and timeout settings tuned for a scanning style,
and is applied with 'portscout scan --profile NAME'. Explicit
flags always override preset values.`,
	Example: `  portscout profiles
  portscout scan 192.168.1.1 --profile fast`,
	Run: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(_ *cobra.Command, _ []string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "Description", "Ports", "Workers", "Timeout")

	for _, preset := range profiles.All() {
		_ = table.Append([]string{
			preset.Name,
			preset.Description,
			summarizePorts(preset.Ports),
			strconv.Itoa(preset.Workers),
			preset.Timeout.String(),
		})
	}

	_ = table.Render()
}

// summarizePorts keeps the ports column readable: compact range
// notation for short lists, a count for long ones.
func summarizePorts(ports []int) string {
	const maxSpecLen = 40

	spec := portset.Format(ports)
	if len(spec) <= maxSpecLen {
		return spec
	}
	return fmt.Sprintf("%d ports (%d-%d)", len(ports), ports[0], ports[len(ports)-1])
}
