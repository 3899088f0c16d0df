package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"sigs.k8s.io/yaml"
)

const (
	FormatText = "text"
	FormatYAML = "yaml"
)

func Render(w io.Writer, doc Document, format string) error {
	switch format {
	case FormatText:
		return RenderText(w, doc)
	case FormatYAML:
		return RenderYAML(w, doc)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func RenderYAML(w io.Writer, doc Document) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func RenderText(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)

	for _, group := range doc.Groups {
		fmt.Fprintf(bw, " * %s\n", group.Name)
		fmt.Fprintf(bw, "   - %s\n", group.RestartCommand)
	}
	if len(doc.Groups) == 0 {
		fmt.Fprintln(bw, "No units need restarting.")
	}
	if doc.NonUnitProcesses {
		fmt.Fprintln(bw, "Some pids not associated with units need restarting.")
	}

	if len(doc.Units) > 0 {
		fmt.Fprintln(bw, "These units need restarting:")
		for _, unit := range doc.Units {
			fmt.Fprintf(bw, " * %s\n", unit.Name)
			for _, path := range unit.Paths {
				fmt.Fprintf(bw, "   - %s\n", path)
			}
		}
	}

	if len(doc.Executables) > 0 {
		fmt.Fprintln(bw, "These executables have processes running outside of useful units:")
		for _, exe := range doc.Executables {
			fmt.Fprintf(bw, " * %s\n", exe.Path)
			fmt.Fprintln(bw, "   - pids:")
			for _, proc := range exe.Processes {
				fmt.Fprintf(bw, "     - %d (%s)\n", proc.Pid, proc.Owner)
			}
			fmt.Fprintln(bw, "   - paths:")
			for _, path := range exe.Paths {
				fmt.Fprintf(bw, "     - %s\n", path)
			}
		}
	}

	if len(doc.UnverifiedPaths) > 0 {
		fmt.Fprintln(bw, "These mapped paths could not be verified and may also be stale:")
		for _, path := range doc.UnverifiedPaths {
			fmt.Fprintf(bw, " * %s\n", path)
		}
	}
	if len(doc.DroppedPids) > 0 {
		fmt.Fprintf(bw, "%s processes with stale mappings have neither a unit nor an executable.\n",
			humanize.Comma(int64(len(doc.DroppedPids))))
	}
	if doc.Summary.PermissionErrors > 0 {
		fmt.Fprintf(bw, "%s permission errors; re-run as root for complete results.\n",
			humanize.Comma(int64(doc.Summary.PermissionErrors)))
	}

	return bw.Flush()
}
