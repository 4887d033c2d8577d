package siesta

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/protocol"
)

// MeshCutoff is a real-space grid cutoff such as "200 Ry".
type MeshCutoff struct {
	Value float64
	Units string
}

func (m MeshCutoff) String() string { return formatFloat(m.Value) + " " + m.Units }

// ParseMeshCutoff parses "value units".
func ParseMeshCutoff(v any) (MeshCutoff, error) {
	s, ok := v.(string)
	if !ok {
		return MeshCutoff{}, fmt.Errorf("expected a string, got %T", v)
	}
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return MeshCutoff{}, fmt.Errorf("`%s`: value and units are required", s)
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return MeshCutoff{}, fmt.Errorf("`%s`: %w", s, err)
	}
	return MeshCutoff{Value: value, Units: fields[1]}, nil
}

// validateProtocol checks the keys every SIESTA protocol must define.
func validateProtocol(_ string, def map[string]any) error {
	params, ok := def["parameters"].(map[string]any)
	if !ok {
		return fmt.Errorf("does not define the mandatory key `parameters`")
	}
	if mc, ok := params["mesh-cutoff"]; ok {
		if _, err := ParseMeshCutoff(mc); err != nil {
			return fmt.Errorf("wrong format of `mesh-cutoff` in `parameters`, value and units are required")
		}
	}
	for _, key := range []string{"basis", "pseudo_family"} {
		if _, ok := def[key]; !ok {
			return fmt.Errorf("does not define the mandatory key `%s`", key)
		}
	}
	return nil
}

// Kpoints returns the k-point mesh: the one of the reference workchain if
// given, otherwise one generated from the protocol density. It returns nil
// when the protocol has no k-points section.
func Kpoints(prot protocol.Protocol, s *domain.Structure, reference *domain.ProcessNode) (*domain.Kpoints, error) {
	kpoints := domain.NewKpoints()
	if err := kpoints.SetCellFromStructure(s); err != nil {
		return nil, err
	}

	if reference != nil {
		node, ok := reference.Input("kpoints")
		previous, isKpoints := node.(*domain.Kpoints)
		if !ok || !isKpoints {
			return nil, fmt.Errorf("reference workchain %s has no `kpoints` input", reference.UUID())
		}
		mesh, offset, ok := previous.Mesh()
		if !ok {
			return nil, fmt.Errorf("reference workchain %s: `kpoints` input has no mesh", reference.UUID())
		}
		if err := kpoints.SetMesh(mesh, offset); err != nil {
			return nil, err
		}
		return kpoints, nil
	}

	if prot.Kpoints == nil {
		return nil, nil
	}
	distance, err := number(prot.Kpoints["distance"])
	if err != nil {
		return nil, fmt.Errorf("protocol `%s`: kpoints distance: %w", prot.Name, err)
	}
	var offset [3]float64
	if raw, ok := prot.Kpoints["offset"]; ok {
		if offset, err = triple(raw); err != nil {
			return nil, fmt.Errorf("protocol `%s`: kpoints offset: %w", prot.Name, err)
		}
	}
	if err := kpoints.SetMeshFromDensity(distance, offset); err != nil {
		return nil, err
	}
	return kpoints, nil
}

// Parameters builds the `parameters` input from the protocol: block keys are
// prefixed with `%`, the mesh cutoff is raised to the largest per-species
// heuristic, and a reference workchain pins the real-space mesh.
func Parameters(prot protocol.Protocol, s *domain.Structure, reference *domain.ProcessNode) (map[string]any, error) {
	parameters := copyMap(prot.Parameters)
	for key := range prot.Parameters {
		if strings.Contains(key, "block") {
			parameters["%"+key] = parameters[key]
			delete(parameters, key)
		}
	}

	if prot.AtomicHeuristics != nil {
		cutoff, found, err := MaxMeshCutoff(prot, s)
		if err != nil {
			return nil, err
		}
		if found {
			parameters["mesh-cutoff"] = cutoff.String()
		}
		for _, kind := range s.Kinds() {
			h, ok := prot.Heuristic(kind.Symbol, "parameters")
			if !ok {
				continue
			}
			if sampling, ok := h["grid-sampling"]; ok {
				parameters["%block GridCellSampling"] = fmt.Sprint(sampling) + "\n%endblock GridCellSampling"
			}
		}
	}

	if reference != nil {
		mesh, err := referenceMesh(reference)
		if err != nil {
			return nil, err
		}
		parameters["mesh-sizes"] = mesh
		delete(parameters, "mesh-cutoff")
	}
	return parameters, nil
}

// MaxMeshCutoff returns the largest of the global mesh cutoff and the
// per-species heuristics of the kinds in s. Without a global value the units of
// the first applicable heuristic are used. found is false when neither exists.
func MaxMeshCutoff(prot protocol.Protocol, s *domain.Structure) (cutoff MeshCutoff, found bool, err error) {
	if raw, ok := prot.Parameters["mesh-cutoff"]; ok {
		if cutoff, err = ParseMeshCutoff(raw); err != nil {
			return MeshCutoff{}, false, fmt.Errorf("protocol `%s`: %w", prot.Name, err)
		}
		found = true
	}
	for _, kind := range s.Kinds() {
		h, ok := prot.Heuristic(kind.Symbol, "parameters")
		if !ok {
			continue
		}
		raw, ok := h["mesh-cutoff"]
		if !ok {
			continue
		}
		custom, err := ParseMeshCutoff(raw)
		if err != nil {
			return MeshCutoff{}, false, fmt.Errorf("wrong `mesh-cutoff` value for heuristic %s of protocol %s: %w", kind.Symbol, prot.Name, err)
		}
		switch {
		case !found:
			cutoff, found = custom, true
		case custom.Value > cutoff.Value:
			cutoff.Value = custom.Value
		}
	}
	return cutoff, found, nil
}

func referenceMesh(reference *domain.ProcessNode) (string, error) {
	node, ok := reference.Output("output_parameters")
	out, isDict := node.(*domain.Dict)
	if !ok || !isDict {
		return "", fmt.Errorf("reference workchain %s has no `output_parameters` output", reference.UUID())
	}
	raw, _ := out.Get("mesh")
	rv := reflect.ValueOf(raw)
	if raw == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != 3 {
		return "", fmt.Errorf("reference workchain %s: `mesh` must have three entries, got %v", reference.UUID(), raw)
	}
	return fmt.Sprintf("[%v %v %v]", rv.Index(0).Interface(), rv.Index(1).Interface(), rv.Index(2).Interface()), nil
}

// Basis builds the `basis` input from the protocol and the per-species heuristics.
func Basis(prot protocol.Protocol, s *domain.Structure) map[string]any {
	basis := copyMap(prot.Basis)
	if prot.AtomicHeuristics == nil {
		return basis
	}

	var polarization, sizes, paoBlocks []string
	for _, kind := range s.Kinds() {
		h, ok := prot.Heuristic(kind.Symbol, "basis")
		if !ok {
			continue
		}
		if _, ok := h["split-tail-norm"]; ok {
			basis["pao-split-tail-norm"] = true
		}
		if v, ok := h["polarization"]; ok {
			polarization = append(polarization, fmt.Sprintf("  %s  %v \n", kind.Name, v))
		}
		if v, ok := h["size"]; ok {
			sizes = append(sizes, fmt.Sprintf("  %s  %v \n", kind.Name, v))
		}
		if v, ok := h["pao-block"]; ok {
			block := fmt.Sprint(v)
			if kind.Name != kind.Symbol {
				block = strings.ReplaceAll(block, kind.Symbol, kind.Name)
			}
			paoBlocks = append(paoBlocks, block+" \n")
		}
	}

	if len(polarization) > 0 {
		basis["%block pao-polarization-scheme"] = card(polarization, "%endblock paopolarizationscheme")
	}
	if len(sizes) > 0 {
		basis["%block pao-basis-sizes"] = card(sizes, "%endblock paobasissizes")
	}
	if len(paoBlocks) > 0 {
		basis["%block pao-basis"] = card(paoBlocks, "%endblock pao-basis")
	}
	return basis
}

// InitialSpinBlock renders the dm-init-spin block, one line per site.
func InitialSpinBlock(magnetization []float64) string {
	lines := make([]string, len(magnetization))
	for i, m := range magnetization {
		lines[i] = fmt.Sprintf(" %d %s \n", i+1, formatFloat(m))
	}
	return card(lines, "%endblock dm-init-spin")
}

func card(lines []string, end string) string {
	return "\n" + strings.Join(lines, "") + end
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func triple(v any) ([3]float64, error) {
	var out [3]float64
	list, ok := v.([]any)
	if !ok || len(list) != 3 {
		return out, fmt.Errorf("expected three numbers, got %v", v)
	}
	for i, item := range list {
		f, err := number(item)
		if err != nil {
			return out, err
		}
		out[i] = f
	}
	return out, nil
}
