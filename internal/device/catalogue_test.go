package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		id   string
		want SensorKind
	}{
		{"ppv1", KindMeasurement},
		{"vgrid", KindMeasurement},
		{"work_mode_label", KindLabel},
		{"battery_mode_label", KindLabel},
		{"errors", KindError},
		{"warning_code", KindMeasurement},
		{"bms_warning", KindError},
		{"bms_warning_code", KindError},
		{"meter_error", KindError},
		{"timestamp", KindTimestamp},
		{"meter_timestamp", KindTimestamp},
		{"timestamp_label", KindLabel},
		{"timestamp_errors", KindError},
		{"xstamp", KindMeasurement},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.id))
		})
	}
}

func TestSensorKind_Predicates(t *testing.T) {
	assert.True(t, KindLabel.IsTextual())
	assert.True(t, KindError.IsTextual())
	assert.False(t, KindMeasurement.IsTextual())
	assert.False(t, KindTimestamp.IsTextual())

	assert.True(t, KindTimestamp.IsTemporal())
	assert.False(t, KindLabel.IsTemporal())

	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "measurement", KindMeasurement.String())
	assert.Equal(t, "timestamp", KindTimestamp.String())
}

func TestNewCatalogue(t *testing.T) {
	cat := NewCatalogue([]SensorDescriptor{
		{ID: "timestamp", Name: "Timestamp"},
		{ID: "ppv1", Name: "PV1 Power", Unit: "W", Group: "PV"},
		{ID: "work_mode_label", Name: "Work Mode"},
		{ID: "ppv1", Name: "duplicate"},
	})

	require.Equal(t, 3, cat.Len())

	all := cat.All()
	assert.Equal(t, []string{"timestamp", "ppv1", "work_mode_label"},
		[]string{all[0].ID, all[1].ID, all[2].ID})

	assert.Equal(t, KindTimestamp, all[0].Kind)
	assert.Equal(t, KindMeasurement, all[1].Kind)
	assert.Equal(t, KindLabel, all[2].Kind)
	assert.Equal(t, "NA", all[0].Group)
	assert.Equal(t, "PV", all[1].Group)

	got, ok := cat.Lookup("ppv1")
	require.True(t, ok)
	assert.Equal(t, "PV1 Power", got.Name)

	_, ok = cat.Lookup("missing")
	assert.False(t, ok)
}

func TestCatalogue_Nil(t *testing.T) {
	var cat *Catalogue
	assert.Equal(t, 0, cat.Len())
	assert.Nil(t, cat.All())
	_, ok := cat.Lookup("x")
	assert.False(t, ok)
}
