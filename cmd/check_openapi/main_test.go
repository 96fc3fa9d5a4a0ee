package main

import (
	"strings"
	"testing"
)

func TestAPISpecMatchesGoTypes(t *testing.T) {
	doc, err := loadDoc("../../services/api/openapi.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if problems := checkDoc(doc); len(problems) > 0 {
		t.Fatalf("openapi drift: %v", problems)
	}
}

func TestCheckDocReportsDrift(t *testing.T) {
	var doc openAPIDoc
	doc.Components.Schemas = map[string]schema{
		"ErrorResponse": {
			Type:       "object",
			Required:   []string{"error"},
			Properties: map[string]schema{"error": {Type: "string"}},
		},
		"Quote": {
			Type: "object",
			Properties: map[string]schema{
				"basePrice":  {Type: "integer"},
				"serviceFee": {Type: "string"},
				"discount":   {Type: "integer"},
			},
		},
	}
	var joined []string
	for _, p := range checkDoc(doc) {
		joined = append(joined, p.Error())
	}
	all := strings.Join(joined, "\n")
	for _, want := range []string{
		"Quote.totalPrice missing from schema",
		`Quote.serviceFee type "string", Go encodes "integer"`,
		"Quote.discount not produced by Quote",
		`schema "Hub" missing`,
	} {
		if !strings.Contains(all, want) {
			t.Fatalf("expected %q in:\n%s", want, all)
		}
	}
}
