package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Category
		wantErr bool
	}{
		{name: "validation", input: "validation", want: CategoryValidation},
		{name: "authorization", input: "authorization", want: CategoryAuthorization},
		{name: "system", input: "system", want: CategorySystem},
		{name: "mixed case and spaces", input: "  System ", want: CategorySystem},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown", input: "network", wantErr: true},
		{name: "prefix only", input: "auth", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownCategory))
				assert.True(t, IsUnknownCategory(err))

				var uce *UnknownCategoryError
				require.ErrorAs(t, err, &uce)
				assert.Equal(t, tt.input, uce.Value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoriesIsClosedAndOrdered(t *testing.T) {
	got := Categories()
	assert.Equal(t, []Category{CategoryValidation, CategoryAuthorization, CategorySystem}, got)

	got[0] = "mutated"
	assert.Equal(t, CategoryValidation, Categories()[0], "Categories must return a copy")
}

func TestCategoryIcon(t *testing.T) {
	assert.Equal(t, "📝", CategoryValidation.Icon())
	assert.Equal(t, "🔐", CategoryAuthorization.Icon())
	assert.Equal(t, "⚙️", CategorySystem.Icon())
	assert.Panics(t, func() { _ = Category("bogus").Icon() })
}

func TestCategoryForStatus(t *testing.T) {
	tests := []struct {
		code int
		want Category
		ok   bool
	}{
		{400, CategoryValidation, true},
		{401, CategoryAuthorization, true},
		{403, CategoryAuthorization, true},
		{404, CategoryValidation, true},
		{422, CategoryValidation, true},
		{500, CategorySystem, true},
		{503, CategorySystem, true},
		{504, CategorySystem, true},
		{200, "", false},
		{302, "", false},
		{600, "", false},
	}

	for _, tt := range tests {
		got, ok := CategoryForStatus(tt.code)
		assert.Equal(t, tt.ok, ok, "code %d", tt.code)
		assert.Equal(t, tt.want, got, "code %d", tt.code)
	}
}

func TestSeverityOrderingAndEmphasis(t *testing.T) {
	assert.Less(t, SeverityLow, SeverityMedium)
	assert.Less(t, SeverityMedium, SeverityHigh)
	assert.Less(t, SeverityHigh, SeverityCritical)

	assert.Equal(t, EmphasisCaution, SeverityLow.Emphasis())
	assert.Equal(t, EmphasisCaution, SeverityMedium.Emphasis())
	assert.Equal(t, EmphasisAlarm, SeverityHigh.Emphasis())
	assert.Equal(t, EmphasisAlarm, SeverityCritical.Emphasis())
	assert.Panics(t, func() { _ = Severity(42).Emphasis() })
}

func TestParseSeverity(t *testing.T) {
	for _, name := range []string{"low", "medium", "high", "critical"} {
		sev, err := ParseSeverity(name)
		require.NoError(t, err)
		assert.Equal(t, name, sev.String())
		assert.True(t, sev.Valid())
	}

	_, err := ParseSeverity("urgent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSeverity)
	assert.Equal(t, "Severity(9)", Severity(9).String())
}

func TestAppErrorJSONUsesWireNames(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	tmpl := Template{
		Code:            403,
		Category:        CategoryAuthorization,
		Severity:        SeverityHigh,
		UserMessage:     "You don't have permission to perform this action.",
		SuggestedAction: "Contact your administrator",
		DocsURL:         "/docs/errors/forbidden",
	}
	appErr := tmpl.Stamp("id-1", DebugInfo{
		TechnicalMessage: "AuthorizationError: role mismatch",
		Timestamp:        ts,
		RequestID:        "req_1_abc",
		Context:          map[string]string{"method": "POST"},
	})

	data, err := json.Marshal(appErr)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "authorization", raw["category"])
	assert.Equal(t, "high", raw["severity"])
	assert.Equal(t, "You don't have permission to perform this action.", raw["userMessage"])
	assert.Equal(t, "/docs/errors/forbidden", raw["docsUrl"])

	debug, ok := raw["debugInfo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "req_1_abc", debug["requestId"])
	assert.NotContains(t, debug, "stackTrace", "empty stack trace is omitted")

	var back AppError
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, appErr.Category, back.Category)
	assert.Equal(t, appErr.Severity, back.Severity)
}

func TestPublicProjectionHasNoDebugInfo(t *testing.T) {
	appErr := AppError{
		ID:          "x",
		Code:        500,
		Category:    CategorySystem,
		Severity:    SeverityCritical,
		UserMessage: "Something unexpected went wrong.",
		DebugInfo:   DebugInfo{TechnicalMessage: "ECONNREFUSED", RequestID: "req_1_a"},
	}

	data, err := json.Marshal(appErr.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "debugInfo")
	assert.NotContains(t, string(data), "ECONNREFUSED")
	assert.NotContains(t, string(data), "req_1_a")
}

func TestCloneDetachesContext(t *testing.T) {
	orig := AppError{DebugInfo: DebugInfo{Context: map[string]string{"ip": "192.168.1.xxx"}}}
	cp := orig.Clone()
	cp.DebugInfo.Context["ip"] = "changed"
	assert.Equal(t, "192.168.1.xxx", orig.DebugInfo.Context["ip"])
}

func TestCategoryUnmarshalRejectsUnknown(t *testing.T) {
	var c Category
	err := json.Unmarshal([]byte(`"network"`), &c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = json.Marshal(Category("network"))
	assert.Error(t, err)
}
