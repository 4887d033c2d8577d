package generator

import (
	"reflect"

	"github.com/mohae/deepcopy"

	"github.com/aretw0/commonwf/pkg/domain"
)

var nodeType = reflect.TypeOf((*domain.Node)(nil)).Elem()

// KeepStored reports whether v is a stored node, which is shared rather than copied.
func KeepStored(v any) bool {
	n, ok := v.(domain.Node)
	return ok && !domain.IsNil(n) && n.IsStored()
}

// CopyExcept returns a deep copy of v in which every value matching keep is
// shared by reference. Other nodes are cloned. Maps, slices and arrays, typed
// or not, are walked so kept values and nodes are found at any depth.
func CopyExcept(v any, keep func(any) bool) any {
	if v == nil {
		return nil
	}
	if keep(v) {
		return v
	}
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = CopyExcept(item, keep)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = CopyExcept(item, keep)
		}
		return out
	case domain.Node:
		if domain.IsNil(x) {
			return v
		}
		return x.Clone()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyElem(iter.Value(), rv.Type().Elem(), keep))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyElem(rv.Index(i), rv.Type().Elem(), keep))
		}
		return out.Interface()
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyElem(rv.Index(i), rv.Type().Elem(), keep))
		}
		return out.Interface()
	case reflect.Pointer, reflect.Struct:
		return deepcopy.Copy(v)
	default:
		return v
	}
}

// copyElem copies one element of a typed container, keeping its static type.
func copyElem(ev reflect.Value, elemType reflect.Type, keep func(any) bool) reflect.Value {
	if elemType.Kind() == reflect.Interface && ev.IsNil() {
		return reflect.Zero(elemType)
	}
	if !holdsNodes(elemType) && !isContainer(elemType) {
		if elemType.Kind() == reflect.Pointer || elemType.Kind() == reflect.Struct {
			return reflect.ValueOf(deepcopy.Copy(ev.Interface())).Convert(elemType)
		}
		return ev
	}
	c := CopyExcept(ev.Interface(), keep)
	if c == nil {
		return reflect.Zero(elemType)
	}
	return reflect.ValueOf(c)
}

func holdsNodes(t reflect.Type) bool {
	return t.Kind() == reflect.Interface || t.Implements(nodeType)
}

func isContainer(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return true
	}
	return false
}
