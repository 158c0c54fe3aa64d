package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeLookups(t *testing.T) {
	assert.Equal(t, "Dr. Martínez", DoctorName(2))
	assert.Equal(t, "Empaste", TreatmentName(3))
	assert.Equal(t, "confirmed", StatusName(1))
}

func TestUnknownCodesFallBack(t *testing.T) {
	// A code added upstream before this table learns about it must not
	// break a sync pass.
	assert.Equal(t, UnknownDoctor, DoctorName(99))
	assert.Equal(t, UnknownTreatment, TreatmentName(-1))
	assert.Equal(t, UnknownStatus, StatusName(42))
}
