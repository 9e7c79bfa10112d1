package perception

import (
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func pat(attr string, op Operation, value string) Entity {
	return Entity{Attribute: attr, Operation: op, Value: value, Source: SourcePattern}
}

func TestExtractor_Extract(t *testing.T) {
	x := NewExtractor()

	tests := []struct {
		name string
		in   string
		want []Entity
	}{
		{
			name: "keyword beats bare number",
			in:   "contract 123456",
			want: []Entity{pat(AttrContractNumber, OpEquals, "123456")},
		},
		{
			name: "bare long number is an account",
			in:   "1000578963",
			want: []Entity{pat(AttrCustomerNumber, OpEquals, "1000578963")},
		},
		{
			name: "customer number keyword",
			in:   "contracts for customer 1000578963",
			want: []Entity{pat(AttrCustomerNumber, OpEquals, "1000578963")},
		},
		{
			name: "contract number list",
			in:   "show contracts 123456, 234567 and 345678",
			want: []Entity{pat(AttrContractNumber, OpIn, "123456,234567,345678")},
		},
		{
			name: "part number after keyword",
			in:   "price of part ae12345",
			want: []Entity{pat(AttrPartNumber, OpEquals, "AE12345")},
		},
		{
			name: "part keyword claims a long number",
			in:   "price of part 1234567",
			want: []Entity{pat(AttrPartNumber, OpEquals, "1234567")},
		},
		{
			name: "part number by shape",
			in:   "parts for ae12345-abc",
			want: []Entity{pat(AttrPartNumber, OpEquals, "AE12345-ABC")},
		},
		{
			name: "opportunity",
			in:   "opportunities for crf123",
			want: []Entity{pat(AttrOpportunityNumber, OpEquals, "CRF123")},
		},
		{
			name: "created by",
			in:   "contracts created by john",
			want: []Entity{pat(AttrCreatedBy, OpEquals, "john")},
		},
		{
			name: "customer name",
			in:   "customer name acme corp",
			want: []Entity{pat(AttrCustomerName, OpEquals, "ACME CORP")},
		},
		{
			name: "customer name like",
			in:   "customers with name like acme",
			want: []Entity{pat(AttrCustomerName, OpLike, "acme")},
		},
		{
			name: "date range",
			in:   "contracts between 01-01-2024 and 12-31-2024",
			want: []Entity{pat(AttrCreatedDate, OpBetween, "01-01-2024 AND 12-31-2024")},
		},
		{
			name: "year",
			in:   "contracts in 2024",
			want: []Entity{pat(AttrCreatedDate, OpBetween, "01-01-2024 AND 12-31-2024")},
		},
		{
			name: "status",
			in:   "show active contracts",
			want: []Entity{pat(AttrStatus, OpEquals, "ACTIVE")},
		},
		{
			name: "negated status",
			in:   "contracts not expired",
			want: []Entity{pat(AttrStatus, OpNotEquals, "EXPIRED")},
		},
		{
			name: "status synonym",
			in:   "live contracts",
			want: []Entity{{Attribute: AttrStatus, Operation: OpEquals, Value: "ACTIVE", Source: SourceNLP}},
		},
		{
			name: "several attributes in priority order",
			in:   "active contracts for customer 1000578963 effective after 01-01-2024",
			want: []Entity{
				pat(AttrCustomerNumber, OpEquals, "1000578963"),
				pat(AttrEffectiveDate, OpGTE, "01-01-2024"),
				pat(AttrStatus, OpEquals, "ACTIVE"),
			},
		},
		{
			name: "nothing",
			in:   "hello there",
			want: []Entity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.Extract(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestExtractor_Deterministic(t *testing.T) {
	x := NewExtractor()
	in := "active contracts for customer 1000578963 created by smith in 2023"
	first := x.Extract(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, x.Extract(in))
	}
}

func TestExtractor_NoDuplicates(t *testing.T) {
	got := NewExtractor().Extract("active and active contracts")
	assert.Len(t, got, 1)
}

func TestNewExtractorWithRules_PriorityOrder(t *testing.T) {
	rules := []ExtractionRule{
		{Name: "low", Attribute: "LOW", Operation: OpEquals, Pattern: regexp.MustCompile(`(\d+)`), Priority: 1},
		{Name: "high", Attribute: "HIGH", Operation: OpEquals, Pattern: regexp.MustCompile(`id (\d+)`), Priority: 9},
	}
	x := NewExtractorWithRules(rules)
	assert.Equal(t, "high", x.Rules()[0].Name)

	got := x.Extract("id 42 and 7")
	want := []Entity{pat("HIGH", OpEquals, "42"), pat("LOW", OpEquals, "7")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractEntities_Normalizes(t *testing.T) {
	got := ExtractEntities("Contrct 123456")
	if diff := cmp.Diff([]Entity{pat(AttrContractNumber, OpEquals, "123456")}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
