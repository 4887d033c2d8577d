package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/commonwf/internal/cli"
	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/workflows/relax"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Generate the inputs of a common workflow",
}

var relaxCmd = &cobra.Command{
	Use:   "relax <plugin>",
	Short: "Generate the inputs to relax a crystal structure with one engine",
	Long: `Generate the inputs to relax a crystal structure using the common relax workflow
of one of the engine implementations, and print the resulting builder.

The codes required by the engine can be passed with --code. Codes that are not
passed are looked up in the node store by the plugin they run. Use --show-engines
to display the engines and code plugins the implementation requires.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelax,
}

func init() {
	f := relaxCmd.Flags()
	f.StringP("structure", "S", "Si", "structure file (YAML) or the name of a bundled structure")
	f.StringSliceP("code", "X", nil, "codes to use, by UUID or label")
	f.StringP("protocol", "p", "fast", "protocol to use")
	f.StringP("relax-type", "r", string(domain.RelaxPositions), "degrees of freedom to optimize")
	f.StringP("electronic-type", "e", string(domain.ElectronicMetal), "electronic character of the system")
	f.StringP("spin-type", "s", string(domain.SpinNone), "spin polarization treatment")
	f.Float64("threshold-forces", 0, "target threshold for the forces in eV/Å")
	f.Float64("threshold-stress", 0, "target threshold for the stress in eV/Å^3")
	f.IntSliceP("number-machines", "m", nil, "number of machines, one value per engine")
	f.IntSliceP("number-mpi-procs-per-machine", "n", nil, "number of MPI processes per machine, one value per engine")
	f.IntSliceP("number-cores-per-mpiproc", "t", nil, "number of cores per MPI process, one value per engine")
	f.IntSliceP("wallclock-seconds", "w", nil, "maximum walltime in seconds, one value per engine")
	f.Float64Slice("magnetization-per-site", nil, "initial magnetization of each site")
	f.StringP("reference-workchain", "P", "", "stored workchain (UUID or label) whose settings are reused")
	f.String("engine-options", "{}", "options per engine in JSON format, e.g. '{\"relax\": {\"account\": \"proj\"}}'")
	f.StringArray("override", nil, "override applied to the builder, as name:json-args (repeatable)")
	f.StringSlice("optional-feature", nil, "optional feature the engine must support, e.g. fixed_magnetization")
	f.Bool("show-engines", false, "show information on the required calculation engines")

	launchCmd.AddCommand(relaxCmd)
	rootCmd.AddCommand(launchCmd)
}

func runRelax(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	eng, err := newEngine()
	if err != nil {
		return err
	}
	gen, err := eng.Generator(relax.Workflow, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if show, _ := f.GetBool("show-engines"); show {
		spec, err := gen.Spec()
		if err != nil {
			return err
		}
		return cli.ShowEngines(out, spec, cli.Profile(out))
	}

	structureName, _ := f.GetString("structure")
	structure, err := cli.LoadStructure(structureName)
	if err != nil {
		return err
	}
	rawEngineOptions, _ := f.GetString("engine-options")
	engineOptions, err := cli.ParseEngineOptions(rawEngineOptions)
	if err != nil {
		return err
	}
	rawOverrides, _ := f.GetStringArray("override")
	list, err := cli.ParseOverrides(rawOverrides)
	if err != nil {
		return err
	}

	opts := cli.RelaxOptions{Structure: structure, EngineOptions: engineOptions}
	opts.Codes, _ = f.GetStringSlice("code")
	opts.Protocol, _ = f.GetString("protocol")
	opts.RelaxType, _ = f.GetString("relax-type")
	opts.ElectronicType, _ = f.GetString("electronic-type")
	opts.SpinType, _ = f.GetString("spin-type")
	opts.ReferenceWorkchain, _ = f.GetString("reference-workchain")
	opts.OptionalFeatures, _ = f.GetStringSlice("optional-feature")
	if f.Changed("threshold-forces") {
		v, _ := f.GetFloat64("threshold-forces")
		opts.ThresholdForces = &v
	}
	if f.Changed("threshold-stress") {
		v, _ := f.GetFloat64("threshold-stress")
		opts.ThresholdStress = &v
	}
	if f.Changed("magnetization-per-site") {
		opts.MagnetizationPerSite, _ = f.GetFloat64Slice("magnetization-per-site")
	}
	for flag, dst := range map[string]*[]int{
		"number-machines":              &opts.NumberMachines,
		"number-mpi-procs-per-machine": &opts.NumberMPIProcsPerMachine,
		"number-cores-per-mpiproc":     &opts.NumberCoresPerMPIProc,
		"wallclock-seconds":            &opts.WallclockSeconds,
	} {
		if f.Changed(flag) {
			*dst, _ = f.GetIntSlice(flag)
		}
	}

	inputs, err := cli.RelaxInputs(cmd.Context(), gen, eng.Store(), opts)
	if err != nil {
		return err
	}
	b, err := gen.GetBuilder(cmd.Context(), inputs)
	if err != nil {
		return err
	}
	if err := eng.ApplyOverrides(cmd.Context(), b, list); err != nil {
		return err
	}
	logger.Info("builder generated", "process", b.Process(), "structure", structure.Label())
	return cli.WriteValue(out, map[string]any{"process": b.Process(), "inputs": b}, cfg.Output)
}
