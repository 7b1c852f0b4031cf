package checkout

import (
	"strings"

	"github.com/eubiosis/checkout/internal/domain/order"
)

// Required customer fields, in form order.
const (
	FieldFirstName  = "firstName"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldAddress    = "address"
	FieldCity       = "city"
	FieldPostalCode = "postalCode"
)

// Validate returns the required fields of c that are blank after trimming.
// Province is not required here: only the card path needs it.
func Validate(c order.Customer) []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check(FieldFirstName, c.FirstName)
	check(FieldEmail, c.Email)
	check(FieldPhone, c.Phone)
	check(FieldAddress, c.Address)
	check(FieldCity, c.City)
	check(FieldPostalCode, c.PostalCode)
	return missing
}

// SplitFullName splits a single "Name and Surname" input on its last space.
// A single word is all first name.
func SplitFullName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	i := strings.LastIndexByte(full, ' ')
	if i < 0 {
		return full, ""
	}
	return strings.TrimSpace(full[:i]), full[i+1:]
}
