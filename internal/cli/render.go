package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/commonwf/internal/config"
	"github.com/aretw0/commonwf/pkg/schema"
)

// Profile returns the colour profile for w: plain ASCII unless w is a terminal.
func Profile(w io.Writer) termenv.Profile {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return termenv.ColorProfile()
	}
	return termenv.Ascii
}

// ShowEngines prints the engine steps of a workflow with the code plugin each requires.
func ShowEngines(w io.Writer, spec *schema.Spec, p termenv.Profile) error {
	ns, ok := spec.Namespace("engines")
	if !ok {
		return fmt.Errorf("the workflow does not declare an `engines` namespace")
	}
	for _, engine := range ns.Keys() {
		entry, _ := ns.Get(engine)
		plugin := ""
		if port, ok := spec.Port("engines." + engine + ".code"); ok {
			if ct, ok := port.Type().(*schema.CodeType); ok {
				plugin = ct.Plugin()
			}
		}
		fmt.Fprintln(w, p.String(engine).Foreground(p.Color("#ef4444")).Bold())
		fmt.Fprintf(w, "Required code plugin: %s\n", plugin)
		fmt.Fprintf(w, "Engine description:   %s\n", entry.Help())
	}
	return nil
}

// WriteValue encodes v as YAML or indented JSON.
func WriteValue(w io.Writer, v any, format string) error {
	switch format {
	case config.OutputJSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err = buf.WriteTo(w)
		return err
	case config.OutputYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
