// Command check_openapi verifies that the API's OpenAPI schemas describe the
// JSON shape of the Go types the handlers actually write.
package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"turfhub/pkg/domain"
	"turfhub/pkg/fee"
	"turfhub/pkg/payment"
	"turfhub/pkg/session"
)

type openAPIDoc struct {
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

// contracts maps schema names to the Go types serialized under them.
var contracts = map[string]reflect.Type{
	"User":                reflect.TypeOf(domain.User{}),
	"Identity":            reflect.TypeOf(session.Identity{}),
	"TimeSlot":            reflect.TypeOf(domain.TimeSlot{}),
	"Category":            reflect.TypeOf(domain.Category{}),
	"Hub":                 reflect.TypeOf(domain.Hub{}),
	"Booking":             reflect.TypeOf(domain.Booking{}),
	"Quote":               reflect.TypeOf(fee.Quote{}),
	"PaymentInstructions": reflect.TypeOf(payment.Instructions{}),
	"ChatRoom":            reflect.TypeOf(domain.ChatRoom{}),
	"PollOption":          reflect.TypeOf(domain.PollOption{}),
	"Poll":                reflect.TypeOf(domain.Poll{}),
	"ChatMessage":         reflect.TypeOf(domain.ChatMessage{}),
}

var timeType = reflect.TypeOf(time.Time{})

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if problems := checkDoc(doc); len(problems) > 0 {
		exitErr(errors.Join(problems...))
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func checkDoc(doc openAPIDoc) []error {
	if doc.Components.Schemas == nil {
		return []error{errors.New("components.schemas missing")}
	}
	var problems []error
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		problems = append(problems, err)
	} else if err := validateErrorResponse(errResp); err != nil {
		problems = append(problems, err)
	}

	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, err := getSchema(doc, name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		problems = append(problems, compareSchema(name, s, contracts[name])...)
	}
	return problems
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	if !makeSet(s.Required)["error"] {
		return errors.New("ErrorResponse.required must include \"error\"")
	}
	if prop, ok := s.Properties["error"]; !ok || prop.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	return nil
}

// compareSchema reports fields present on one side only and JSON type mismatches.
func compareSchema(name string, s schema, t reflect.Type) []error {
	if s.Type != "object" {
		return []error{fmt.Errorf("%s must be object, got %q", name, s.Type)}
	}
	fields := jsonFields(t)
	var problems []error
	for field, ft := range fields {
		prop, ok := s.Properties[field]
		if !ok {
			problems = append(problems, fmt.Errorf("%s.%s missing from schema", name, field))
			continue
		}
		if got, want := propertyType(prop), jsonType(ft); got != want {
			problems = append(problems, fmt.Errorf("%s.%s type %q, Go encodes %q", name, field, got, want))
		}
	}
	for field := range s.Properties {
		if _, ok := fields[field]; !ok {
			problems = append(problems, fmt.Errorf("%s.%s not produced by %s", name, field, t.Name()))
		}
	}
	for _, field := range s.Required {
		if _, ok := s.Properties[field]; !ok {
			problems = append(problems, fmt.Errorf("%s.required lists unknown field %q", name, field))
		}
	}
	sort.Slice(problems, func(i, j int) bool { return problems[i].Error() < problems[j].Error() })
	return problems
}

func jsonFields(t reflect.Type) map[string]reflect.Type {
	out := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		out[name] = f.Type
	}
	return out
}

func propertyType(prop schema) string {
	if strings.TrimSpace(prop.Ref) != "" {
		return "object"
	}
	return prop.Type
}

func jsonType(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return "string"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
