package appointment

import "strings"

const (
	PayerInsurance    = "Insurance"
	PayerPrivate      = "Private"
	PayerPrescription = "Prescription"
)

var (
	insuranceTokens    = []string{"insurance", "convenio", "convênio"}
	privateTokens      = []string{"private", "particular"}
	prescriptionTokens = []string{"prescription", "receita"}
)

// DerivePayer picks the payer label for a booking from the procedure name.
// Insurance procedures keep the label the desk typed in, when there is one.
func DerivePayer(procedureName, informed string) *string {
	name := strings.ToLower(procedureName)
	informed = strings.TrimSpace(informed)

	label := informed
	switch {
	case containsAny(name, insuranceTokens):
		if label == "" {
			label = PayerInsurance
		}
	case containsAny(name, privateTokens):
		label = PayerPrivate
	case containsAny(name, prescriptionTokens):
		label = PayerPrescription
	}

	if label == "" {
		return nil
	}
	return &label
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
