package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// ValidateCoordinates
// ---------------------------------------------------------------------------

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name      string
		latitude  float64
		longitude float64
		expectErr bool
		errSubstr string
	}{
		{"valid origin", 0, 0, false, ""},
		{"valid sao paulo", -23.5505, -46.6333, false, ""},
		{"valid max latitude", 90, 0, false, ""},
		{"valid min latitude", -90, 0, false, ""},
		{"valid max longitude", 0, 180, false, ""},
		{"valid min longitude", 0, -180, false, ""},
		{"lat too high", 90.1, 0, true, "latitude"},
		{"lat too low", -90.1, 0, true, "latitude"},
		{"lon too high", 0, 180.1, true, "longitude"},
		{"lon too low", 0, -180.1, true, "longitude"},
		{"both invalid", 100, 200, true, "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.latitude, tt.longitude)
			if tt.expectErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ValidateStruct
// ---------------------------------------------------------------------------

type pointPayload struct {
	Name      string   `validate:"required"`
	Latitude  *float64 `validate:"required,latitude"`
	Longitude *float64 `validate:"required,longitude"`
}

func f64(v float64) *float64 { return &v }

func TestValidateStructValid(t *testing.T) {
	p := pointPayload{Name: "pickup", Latitude: f64(-23.55), Longitude: f64(-46.63)}
	assert.NoError(t, ValidateStruct(p))
}

func TestValidateStructZeroCoordinatesValid(t *testing.T) {
	// Pointer fields let a literal 0 pass the required check.
	p := pointPayload{Name: "pickup", Latitude: f64(0), Longitude: f64(0)}
	assert.NoError(t, ValidateStruct(p))
}

func TestValidateStructMissingField(t *testing.T) {
	p := pointPayload{Latitude: f64(-23.55), Longitude: f64(-46.63)}
	err := ValidateStruct(p)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Name(required)")
}

func TestValidateStructMissingCoordinate(t *testing.T) {
	p := pointPayload{Name: "pickup", Longitude: f64(-46.63)}
	err := ValidateStruct(p)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Latitude(required)")
}

func TestValidateStructOutOfRange(t *testing.T) {
	p := pointPayload{Name: "pickup", Latitude: f64(91), Longitude: f64(-46.63)}
	err := ValidateStruct(p)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Latitude(latitude)")
}
