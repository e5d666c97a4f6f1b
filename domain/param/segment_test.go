package param_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/artpar/channelgen/domain/param"
)

func pathSpec(style param.Style, explode bool, typ param.Type) param.Spec {
	return param.Spec{
		Name:     "color",
		Location: param.LocationPath,
		Style:    style,
		Explode:  explode,
		Type:     typ,
		Scalar:   param.ScalarString,
		Required: true,
	}
}

var (
	sampleArray  = []any{"blue", "black", "brown"}
	sampleObject = param.Object{{Key: "R", Value: "100"}, {Key: "G", Value: "200"}, {Key: "B", Value: "150"}}
)

func TestEncodeSegment_Styles(t *testing.T) {
	tests := []struct {
		name    string
		style   param.Style
		explode bool
		typ     param.Type
		value   any
		want    string
	}{
		{"simple scalar", param.StyleSimple, false, param.TypeScalar, "blue", "blue"},
		{"simple array", param.StyleSimple, false, param.TypeArray, sampleArray, "blue,black,brown"},
		{"simple array exploded", param.StyleSimple, true, param.TypeArray, sampleArray, "blue,black,brown"},
		{"simple object", param.StyleSimple, false, param.TypeObject, sampleObject, "R,100,G,200,B,150"},
		{"simple object exploded", param.StyleSimple, true, param.TypeObject, sampleObject, "R=100,G=200,B=150"},
		{"label scalar", param.StyleLabel, false, param.TypeScalar, "blue", ".blue"},
		{"label array", param.StyleLabel, false, param.TypeArray, sampleArray, ".blue.black.brown"},
		{"label array exploded", param.StyleLabel, true, param.TypeArray, sampleArray, ".blue.black.brown"},
		{"label object", param.StyleLabel, false, param.TypeObject, sampleObject, ".R,100,G,200,B,150"},
		{"label object exploded", param.StyleLabel, true, param.TypeObject, sampleObject, ".R=100.G=200.B=150"},
		{"matrix scalar", param.StyleMatrix, false, param.TypeScalar, "blue", ";color=blue"},
		{"matrix array", param.StyleMatrix, false, param.TypeArray, sampleArray, ";color=blue,black,brown"},
		{"matrix array exploded", param.StyleMatrix, true, param.TypeArray, sampleArray, ";color=blue;color=black;color=brown"},
		{"matrix object", param.StyleMatrix, false, param.TypeObject, sampleObject, ";color=R,100,G,200,B,150"},
		{"matrix object exploded", param.StyleMatrix, true, param.TypeObject, sampleObject, ";R=100;G=200;B=150"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := pathSpec(tt.style, tt.explode, tt.typ)
			got, err := param.EncodeSegment(spec, tt.value, '/')
			if err != nil {
				t.Fatalf("EncodeSegment failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeSegment = %q, want %q", got, tt.want)
			}

			back, err := param.DecodeSegment(spec, got)
			if err != nil {
				t.Fatalf("DecodeSegment(%q) failed: %v", got, err)
			}
			if !reflect.DeepEqual(back, tt.value) {
				t.Errorf("DecodeSegment(%q) = %#v, want %#v", got, back, tt.value)
			}
		})
	}
}

func TestSegment_EmptyCollections(t *testing.T) {
	styles := []param.Style{param.StyleSimple, param.StyleLabel, param.StyleMatrix}
	for _, style := range styles {
		for _, explode := range []bool{false, true} {
			arr := pathSpec(style, explode, param.TypeArray)
			enc, err := param.EncodeSegment(arr, []any{}, '/')
			if err != nil {
				t.Fatalf("%s/%v array: %v", style, explode, err)
			}
			got, err := param.DecodeSegment(arr, enc)
			if err != nil {
				t.Fatalf("%s/%v array decode %q: %v", style, explode, enc, err)
			}
			if !reflect.DeepEqual(got, []any{}) {
				t.Errorf("%s/%v empty array round trip = %#v", style, explode, got)
			}

			obj := pathSpec(style, explode, param.TypeObject)
			enc, err = param.EncodeSegment(obj, param.Object{}, '/')
			if err != nil {
				t.Fatalf("%s/%v object: %v", style, explode, err)
			}
			gotObj, err := param.DecodeSegment(obj, enc)
			if err != nil {
				t.Fatalf("%s/%v object decode %q: %v", style, explode, enc, err)
			}
			if !reflect.DeepEqual(gotObj, param.Object{}) {
				t.Errorf("%s/%v empty object round trip = %#v", style, explode, gotObj)
			}
		}
	}
}

func TestSegment_EscapesDelimiterAndSeparators(t *testing.T) {
	topic := param.Spec{Name: "action", Location: param.LocationTopic, Style: param.StylePositional, Type: param.TypeScalar, Scalar: param.ScalarString, Required: true}
	got, err := param.EncodeSegment(topic, "created.v2", '.')
	if err != nil {
		t.Fatalf("EncodeSegment failed: %v", err)
	}
	if got != "created%2Ev2" {
		t.Errorf("topic segment = %q, want created%%2Ev2", got)
	}

	path := pathSpec(param.StyleSimple, false, param.TypeArray)
	got, err = param.EncodeSegment(path, []any{"a,b", "c/d", "e f"}, '/')
	if err != nil {
		t.Fatalf("EncodeSegment failed: %v", err)
	}
	if got != "a%2Cb,c%2Fd,e%20f" {
		t.Errorf("array segment = %q", got)
	}
	back, err := param.DecodeSegment(path, got)
	if err != nil {
		t.Fatalf("DecodeSegment failed: %v", err)
	}
	if !reflect.DeepEqual(back, []any{"a,b", "c/d", "e f"}) {
		t.Errorf("round trip = %#v", back)
	}

	label := pathSpec(param.StyleLabel, false, param.TypeArray)
	got, _ = param.EncodeSegment(label, []any{"v1.2", "x"}, '/')
	if got != ".v1%2E2.x" {
		t.Errorf("label segment = %q", got)
	}
}

func TestSegment_TypedScalars(t *testing.T) {
	tests := []struct {
		name   string
		scalar param.Scalar
		value  any
		text   string
	}{
		{"integer", param.ScalarInteger, int64(-42), "-42"},
		{"number", param.ScalarNumber, 3.25, "3.25"},
		{"boolean true", param.ScalarBoolean, true, "true"},
		{"boolean false", param.ScalarBoolean, false, "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := pathSpec(param.StyleSimple, false, param.TypeScalar)
			spec.Scalar = tt.scalar
			enc, err := param.EncodeSegment(spec, tt.value, '/')
			if err != nil {
				t.Fatalf("EncodeSegment failed: %v", err)
			}
			if enc != tt.text {
				t.Errorf("EncodeSegment = %q, want %q", enc, tt.text)
			}
			dec, err := param.DecodeSegment(spec, enc)
			if err != nil {
				t.Fatalf("DecodeSegment failed: %v", err)
			}
			if dec != tt.value {
				t.Errorf("DecodeSegment = %#v, want %#v", dec, tt.value)
			}
		})
	}
}

func TestDecodeSegment_Errors(t *testing.T) {
	tests := []struct {
		name    string
		spec    param.Spec
		input   string
		wantErr error
	}{
		{"integer parse", func() param.Spec { s := pathSpec(param.StyleSimple, false, param.TypeScalar); s.Scalar = param.ScalarInteger; return s }(), "12a", param.ErrParse},
		{"boolean parse", func() param.Spec { s := pathSpec(param.StyleSimple, false, param.TypeScalar); s.Scalar = param.ScalarBoolean; return s }(), "yes", param.ErrParse},
		{"label without prefix", pathSpec(param.StyleLabel, false, param.TypeScalar), "blue", param.ErrDecode},
		{"matrix wrong name", pathSpec(param.StyleMatrix, false, param.TypeScalar), ";shade=blue", param.ErrDecode},
		{"odd object items", pathSpec(param.StyleSimple, false, param.TypeObject), "R,100,G", param.ErrDecode},
		{"exploded object without '='", pathSpec(param.StyleSimple, true, param.TypeObject), "R=100,G", param.ErrDecode},
		{"bad escape", pathSpec(param.StyleSimple, false, param.TypeScalar), "bl%zzue", param.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := param.DecodeSegment(tt.spec, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeSegment(%q) err = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeSegment_BooleanIsStrict(t *testing.T) {
	spec := pathSpec(param.StyleSimple, false, param.TypeScalar)
	spec.Scalar = param.ScalarBoolean

	for in, want := range map[string]bool{"true": true, "false": false} {
		v, err := param.DecodeSegment(spec, in)
		if err != nil || v != want {
			t.Errorf("DecodeSegment(%q) = %v, %v", in, v, err)
		}
	}
	for _, in := range []string{"TRUE", "True", "1", "yes"} {
		if _, err := param.DecodeSegment(spec, in); !errors.Is(err, param.ErrParse) {
			t.Errorf("DecodeSegment(%q) err = %v, want ErrParse", in, err)
		}
	}
}

func TestSegment_SingleEmptyItemDecodesAsEmpty(t *testing.T) {
	for _, style := range []param.Style{param.StyleSimple, param.StyleLabel, param.StyleMatrix} {
		spec := pathSpec(style, false, param.TypeArray)
		enc, err := param.EncodeSegment(spec, []any{""}, '/')
		if err != nil {
			t.Fatalf("%s: %v", style, err)
		}
		empty, _ := param.EncodeSegment(spec, []any{}, '/')
		if enc != empty {
			t.Errorf("%s: [\"\"] = %q, [] = %q", style, enc, empty)
		}
		got, err := param.DecodeSegment(spec, enc)
		if err != nil || !reflect.DeepEqual(got, []any{}) {
			t.Errorf("%s: DecodeSegment(%q) = %#v, %v", style, enc, got, err)
		}
	}
}
