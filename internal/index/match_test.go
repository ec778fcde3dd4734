package index

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func matchFixture() (*models.Document, []models.Element) {
	doc := &models.Document{Endpoint: "E1", ID: "urn:motor:1", IDShort: "Motor1", AssetID: "urn:asset:m1"}
	els := []models.Element{
		{ModelType: "AAS", ID: "urn:motor:1", IDShort: "Motor1"},
		{ModelType: "Prop", IDShort: "Power", NumberValue: ptr(0.0)},
		{ModelType: "Prop", IDShort: "Serial", BigintValue: ptr(int64(12345))},
		{ModelType: "Prop", IDShort: "Certified", BooleanValue: ptr(false)},
		{ModelType: "Prop", IDShort: "Built", DateValue: ptr(time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC))},
		{ModelType: "MLP", IDShort: "Name", StringValue: ptr("Drive unit")},
		{ModelType: "MLP", IDShort: "Name", StringValue: ptr("Antrieb")},
		{ModelType: "Prop", IDShort: "City", StringValue: ptr("Berlin")},
	}
	return doc, els
}

func TestMatch(t *testing.T) {
	doc, els := matchFixture()
	tests := []struct {
		expr string
		want bool
	}{
		{"motor", true},
		{"asset:m1", true},
		{"antrieb", true},
		{"nothing here", false},
		{"#Prop:Power = 0", true},
		{"#Prop:Power > 0", false},
		{"#Prop:Power >= 0", true},
		{"#Prop:Certified = false", true},
		{"#Prop:Certified != false", false},
		{"#Prop:Serial = 12345", true},
		{"#Prop:Serial > 100n", true},
		{"#Prop:Built < 2022-01-01", true},
		{"#Prop:Built > 2022-01-01", false},
		{"#Prop:City = berlin", true},
		{"#Prop:City ~ erl", true},
		{"#Prop:City != Berlin", false},
		{"#MLP:Name ~ drive", true},
		{"#Property:Missing", false},
		{"#Prop:City", true},
		{"#Prop:City = Paris || #Prop:Power = 0", true},
		{"#Prop:City = Paris && #Prop:Power = 0", false},
		{"(#Prop:City = Paris || motor) && #Prop:Certified = false", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Match(e, doc, els))
		})
	}
}

func TestMatch_NilMatchesEverything(t *testing.T) {
	doc, _ := matchFixture()
	assert.True(t, Match(nil, doc, nil))
}

func TestMatch_NonASCII(t *testing.T) {
	doc := &models.Document{Endpoint: "E1", ID: "urn:Рулон", IDShort: "voilà motor"}
	els := []models.Element{{ModelType: "Prop", IDShort: "City", StringValue: ptr("Århus")}}
	for _, expr := range []string{"voilà", "ÅSEA || рулон", "#Prop:City = århus", "#Prop:City ~ Århu"} {
		t.Run(expr, func(t *testing.T) {
			e, err := Parse(expr)
			require.NoError(t, err)
			assert.True(t, Match(e, doc, els))
		})
	}
}
