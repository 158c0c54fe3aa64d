package legacy

// The practice-management database stores doctors, treatments and appointment
// statuses as small integer codes. These tables translate them into the labels
// the rest of the system works with. Unknown codes must never abort a sync
// pass, so every lookup has an explicit fallback label.

const (
	UnknownDoctor    = "Unknown"
	UnknownTreatment = "Other"
	UnknownStatus    = "Unknown"
)

var doctorNames = map[int]string{
	1: "Dra. García",
	2: "Dr. Martínez",
	3: "Dra. López",
	4: "Dr. Fernández",
	5: "Dra. Ruiz",
}

var treatmentNames = map[int]string{
	1:  "Revisión",
	2:  "Limpieza",
	3:  "Empaste",
	4:  "Endodoncia",
	5:  "Extracción",
	6:  "Implante",
	7:  "Cirugía de implante",
	8:  "Ortodoncia",
	9:  "Blanqueamiento",
	10: "Prótesis",
	11: "Cirugía periodontal",
}

var statusNames = map[int]string{
	0: "scheduled",
	1: "confirmed",
	2: "completed",
	3: "cancelled",
	4: "no_show",
}

// DoctorName translates a doctor code, falling back to UnknownDoctor.
func DoctorName(code int) string {
	if name, ok := doctorNames[code]; ok {
		return name
	}
	return UnknownDoctor
}

// TreatmentName translates a treatment code, falling back to UnknownTreatment.
func TreatmentName(code int) string {
	if name, ok := treatmentNames[code]; ok {
		return name
	}
	return UnknownTreatment
}

// StatusName translates a status code, falling back to UnknownStatus.
func StatusName(code int) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return UnknownStatus
}
