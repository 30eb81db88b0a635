package rule

import (
	"testing"

	"github.com/praetorian-inc/sift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pat(label, description string) *Pattern {
	return &Pattern{Spec: types.PatternSpec{Label: label, Pattern: label, Description: description}}
}

func TestParsePatterns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string returns empty slice",
			input:    "",
			expected: []string{},
		},
		{
			name:     "single pattern",
			input:    "gaslighting.*",
			expected: []string{"gaslighting.*"},
		},
		{
			name:     "multiple patterns comma-separated",
			input:    "gaslighting.*,insult.*,negging",
			expected: []string{"gaslighting.*", "insult.*", "negging"},
		},
		{
			name:     "patterns with spaces are trimmed",
			input:    " gaslighting.* , insult.* , negging ",
			expected: []string{"gaslighting.*", "insult.*", "negging"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParsePatterns(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFilter_IncludeOnly(t *testing.T) {
	patterns := []*Pattern{
		pat("sift.gaslighting.1", "Memory denial"),
		pat("sift.gaslighting.2", "Event denial"),
		pat("sift.insult.1", "Insult vocabulary"),
		pat("sift.negging.1", "Backhanded compliment"),
	}

	tests := []struct {
		name     string
		include  []string
		expected []string // expected labels
	}{
		{
			name:     "include gaslighting only",
			include:  []string{"sift.gaslighting.*"},
			expected: []string{"sift.gaslighting.1", "sift.gaslighting.2"},
		},
		{
			name:     "include multiple patterns",
			include:  []string{"sift.gaslighting.*", "sift.insult.*"},
			expected: []string{"sift.gaslighting.1", "sift.gaslighting.2", "sift.insult.1"},
		},
		{
			name:     "include exact match",
			include:  []string{"sift.gaslighting.1"},
			expected: []string{"sift.gaslighting.1"},
		},
		{
			name:     "include pattern matches none",
			include:  []string{"sift.nomatch.*"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := FilterConfig{
				Include: tt.include,
			}

			filtered, err := Filter(patterns, config)
			require.NoError(t, err)

			resultIDs := make([]string, 0)
			for _, r := range filtered {
				resultIDs = append(resultIDs, r.Spec.Label)
			}

			assert.Equal(t, tt.expected, resultIDs)
		})
	}
}

func TestFilter_ExcludeOnly(t *testing.T) {
	patterns := []*Pattern{
		pat("sift.gaslighting.1", "Memory denial"),
		pat("sift.gaslighting.2", "Event denial"),
		pat("sift.insult.1", "Insult vocabulary"),
		pat("sift.negging.1", "Backhanded compliment"),
	}

	tests := []struct {
		name     string
		exclude  []string
		expected []string // expected labels
	}{
		{
			name:     "exclude gaslighting",
			exclude:  []string{"sift.gaslighting.*"},
			expected: []string{"sift.insult.1", "sift.negging.1"},
		},
		{
			name:     "exclude multiple patterns",
			exclude:  []string{"sift.gaslighting.*", "sift.insult.*"},
			expected: []string{"sift.negging.1"},
		},
		{
			name:     "exclude exact match",
			exclude:  []string{"sift.gaslighting.1"},
			expected: []string{"sift.gaslighting.2", "sift.insult.1", "sift.negging.1"},
		},
		{
			name:     "exclude pattern matches none",
			exclude:  []string{"sift.nomatch.*"},
			expected: []string{"sift.gaslighting.1", "sift.gaslighting.2", "sift.insult.1", "sift.negging.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := FilterConfig{
				Exclude: tt.exclude,
			}

			filtered, err := Filter(patterns, config)
			require.NoError(t, err)

			resultIDs := make([]string, 0)
			for _, r := range filtered {
				resultIDs = append(resultIDs, r.Spec.Label)
			}

			assert.Equal(t, tt.expected, resultIDs)
		})
	}
}

func TestFilter_IncludeAndExclude(t *testing.T) {
	patterns := []*Pattern{
		pat("sift.gaslighting.1", "Memory denial"),
		pat("sift.gaslighting.2", "Event denial"),
		pat("sift.gaslighting.deprecated.1", "Retired wording"),
		pat("sift.insult.1", "Insult vocabulary"),
	}

	tests := []struct {
		name     string
		include  []string
		exclude  []string
		expected []string // expected labels
	}{
		{
			name:     "include gaslighting then exclude deprecated",
			include:  []string{"sift.gaslighting.*"},
			exclude:  []string{".*deprecated.*"},
			expected: []string{"sift.gaslighting.1", "sift.gaslighting.2"},
		},
		{
			name:     "include all then exclude gaslighting",
			include:  []string{".*"},
			exclude:  []string{"sift.gaslighting.*"},
			expected: []string{"sift.insult.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := FilterConfig{
				Include: tt.include,
				Exclude: tt.exclude,
			}

			filtered, err := Filter(patterns, config)
			require.NoError(t, err)

			resultIDs := make([]string, 0)
			for _, r := range filtered {
				resultIDs = append(resultIDs, r.Spec.Label)
			}

			assert.Equal(t, tt.expected, resultIDs)
		})
	}
}

func TestFilter_EmptyPatterns(t *testing.T) {
	patterns := []*Pattern{
		pat("sift.gaslighting.1", "Memory denial"),
		pat("sift.insult.1", "Insult vocabulary"),
	}

	tests := []struct {
		name     string
		config   FilterConfig
		expected int // expected number of patterns
	}{
		{
			name:     "empty include and exclude returns all patterns",
			config:   FilterConfig{},
			expected: 2,
		},
		{
			name: "empty include slice returns all patterns",
			config: FilterConfig{
				Include: []string{},
			},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, err := Filter(patterns, tt.config)
			require.NoError(t, err)
			assert.Len(t, filtered, tt.expected)
		})
	}
}

func TestFilter_InvalidRegex(t *testing.T) {
	patterns := []*Pattern{
		pat("sift.gaslighting.1", "Memory denial"),
	}

	tests := []struct {
		name    string
		config  FilterConfig
		wantErr bool
	}{
		{
			name: "invalid include regex",
			config: FilterConfig{
				Include: []string{"[invalid"},
			},
			wantErr: true,
		},
		{
			name: "invalid exclude regex",
			config: FilterConfig{
				Exclude: []string{"[invalid"},
			},
			wantErr: true,
		},
		{
			name: "multiple patterns with one invalid",
			config: FilterConfig{
				Include: []string{"sift.gaslighting.*", "[invalid"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Filter(patterns, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "invalid regex pattern")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilter_NilPatterns(t *testing.T) {
	config := FilterConfig{
		Include: []string{".*"},
	}

	filtered, err := Filter(nil, config)
	require.NoError(t, err)
	assert.Empty(t, filtered)
}
