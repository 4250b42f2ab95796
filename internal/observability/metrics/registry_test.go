package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTags(t *testing.T) {
	tags := Tags{{Key: "sentiment", Value: "POSITIVE"}, {Key: "company", Value: "Acme"}}

	assert.Equal(t, []string{"sentiment", "company"}, tags.Keys())
	assert.Equal(t, []string{"POSITIVE", "Acme"}, tags.Values())
	assert.Equal(t, []string{"sentiment", "POSITIVE", "company", "Acme"}, tags.Pairs())
	assert.Equal(t, "company=Acme,sentiment=POSITIVE", tags.Key())
}

func TestDescriptorID(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		want string
	}{
		{
			name: "no tags",
			desc: Descriptor{Name: CompaniesDetectedName},
			want: "sentiment.analysis.companies.detected",
		},
		{
			name: "tags are order independent",
			desc: Descriptor{Name: AnalysisTotalName, Tags: Tags{{Key: "sentiment", Value: "NEGATIVE"}, {Key: "company", Value: "Acme"}}},
			want: "sentiment.analysis.total{company=Acme,sentiment=NEGATIVE}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.desc.ID())
		})
	}
}
