package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ledgerFixture() [][]string {
	return [][]string{
		{"Nº Paciente", "Nombre", "Teléfono", "Fecha", "Hora"},
		{"1001", "Ana García", "+34600111222", "2025-03-10", "09:00"},
		{"1002", "Luis Pérez", "+34600333444", "2025-03-10", "10:30"},
		{"1001", "Ana García", "+34600111222", "2025-03-11", "09:00"},
	}
}

func TestFindAppointmentRow(t *testing.T) {
	rows := ledgerFixture()

	match := FindAppointmentRow(rows, "1002", "2025-03-10", "10:30")
	assert.True(t, match.Found)
	assert.Equal(t, 3, match.Row)

	// Same patient, different day: the date participates in the key.
	match = FindAppointmentRow(rows, "1001", "2025-03-11", "09:00")
	assert.True(t, match.Found)
	assert.Equal(t, 4, match.Row)

	match = FindAppointmentRow(rows, "1001", "2025-03-12", "09:00")
	assert.False(t, match.Found)
}

func TestFindAppointmentRowSkipsHeader(t *testing.T) {
	rows := [][]string{
		{"1001", "header happens to look like data", "", "2025-03-10", "09:00"},
		{"1001", "Ana García", "+34600111222", "2025-03-10", "09:00"},
	}
	match := FindAppointmentRow(rows, "1001", "2025-03-10", "09:00")
	assert.True(t, match.Found)
	assert.Equal(t, 2, match.Row)
}

func TestFindAppointmentRowFirstMatchWins(t *testing.T) {
	rows := [][]string{
		{"header"},
		{"1001", "Ana García", "", "2025-03-10", "09:00"},
		{"1001", "Ana García duplicate", "", "2025-03-10", "09:00"},
	}
	match := FindAppointmentRow(rows, "1001", "2025-03-10", "09:00")
	assert.Equal(t, 2, match.Row)
}

func TestFindAppointmentRowShortRows(t *testing.T) {
	rows := [][]string{
		{"header"},
		{"1001"}, // staff deleted most of the row by hand
		{"1001", "Ana García", "+34600111222", "2025-03-10", "09:00"},
	}
	match := FindAppointmentRow(rows, "1001", "2025-03-10", "09:00")
	assert.True(t, match.Found)
	assert.Equal(t, 3, match.Row)
}

func TestFindAppointmentRowEmptyLedger(t *testing.T) {
	match := FindAppointmentRow(nil, "1001", "2025-03-10", "09:00")
	assert.False(t, match.Found)

	// Header-only sheet.
	match = FindAppointmentRow([][]string{{"Nº Paciente"}}, "1001", "2025-03-10", "09:00")
	assert.False(t, match.Found)
}
