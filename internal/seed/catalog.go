package seed

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-desk-scheduling/internal/appointment"
)

// StandardProcedures are the procedures every clinic offers. Their names
// drive payer derivation at booking time.
var StandardProcedures = []string{
	"General consultation",
	"Private consultation",
	"Insurance consultation",
	"Prescription request",
	"Follow-up visit",
}

var procedureDescriptions = map[string]string{
	"General consultation":   "Standard visit with the attending physician",
	"Private consultation":   "Visit paid directly by the patient",
	"Insurance consultation": "Visit billed to the patient's health plan",
	"Prescription request":   "Prescription renewal without examination",
	"Follow-up visit":        "Return visit after a previous consultation",
}

var specialties = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Pediatrics",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Ophthalmology",
}

type Sizes struct {
	Patients   int
	Physicians int
	Rooms      int
}

// Catalog is a generated set of reference data.
type Catalog struct {
	Patients   []appointment.Patient
	Physicians []appointment.Physician
	Rooms      []appointment.Room
	Procedures []appointment.Procedure
}

// Generate builds a catalog from faker. A fixed seed gives the same
// catalog on every run.
func Generate(seed uint64, sizes Sizes) Catalog {
	faker := gofakeit.New(seed)

	var c Catalog
	for i := 0; i < sizes.Patients; i++ {
		email := faker.Email()
		c.Patients = append(c.Patients, appointment.Patient{
			ID:    uuidFrom(faker),
			Name:  faker.Name(),
			Email: &email,
		})
	}

	for i := 0; i < sizes.Physicians; i++ {
		specialty := specialties[faker.Number(0, len(specialties)-1)]
		c.Physicians = append(c.Physicians, appointment.Physician{
			ID:        uuidFrom(faker),
			Name:      "Dr. " + faker.LastName(),
			Specialty: &specialty,
		})
	}

	for i := 0; i < sizes.Rooms; i++ {
		capacity := faker.Number(1, 4)
		c.Rooms = append(c.Rooms, appointment.Room{
			ID:       uuidFrom(faker),
			Name:     roomName(i),
			Capacity: &capacity,
		})
	}

	for _, name := range StandardProcedures {
		desc := procedureDescriptions[name]
		c.Procedures = append(c.Procedures, appointment.Procedure{
			ID:          uuidFrom(faker),
			Name:        name,
			Description: &desc,
		})
	}

	return c
}

func roomName(i int) string {
	return fmt.Sprintf("Room %d", i+1)
}

func uuidFrom(faker *gofakeit.Faker) uuid.UUID {
	id, err := uuid.Parse(faker.UUID())
	if err != nil {
		return uuid.New()
	}
	return id
}
