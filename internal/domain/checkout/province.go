package checkout

import (
	"strings"
)

// Province is a delivery region with its sales representative.
type Province struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Representative string `json:"representative"`
	WhatsApp       string `json:"whatsapp"`
}

const (
	numberHarry  = "27714329190"
	numberNadine = "27818909814"
	numberRiegal = "27714329190"
)

// Provinces is the catalog of South African provinces served.
var Provinces = []Province{
	{Code: "EC", Name: "Eastern Cape", Representative: "Harry Trisos", WhatsApp: numberHarry},
	{Code: "FS", Name: "Free State", Representative: "Riegal Du Toit", WhatsApp: numberRiegal},
	{Code: "GP", Name: "Gauteng", Representative: "Riegal Du Toit", WhatsApp: numberRiegal},
	{Code: "KZN", Name: "KwaZulu-Natal", Representative: "Harry Trisos", WhatsApp: numberHarry},
	{Code: "LP", Name: "Limpopo", Representative: "Riegal Du Toit", WhatsApp: numberRiegal},
	{Code: "MP", Name: "Mpumalanga", Representative: "Nadine Marshall", WhatsApp: numberNadine},
	{Code: "NC", Name: "Northern Cape", Representative: "Harry Trisos", WhatsApp: numberHarry},
	{Code: "NW", Name: "North West", Representative: "Riegal Du Toit", WhatsApp: numberRiegal},
	{Code: "WC", Name: "Western Cape", Representative: "Harry Trisos", WhatsApp: numberHarry},
}

// FindProvince looks a province up by name or code, case-insensitively.
func FindProvince(s string) (Province, bool) {
	s = strings.TrimSpace(s)
	for _, p := range Provinces {
		if strings.EqualFold(p.Name, s) || strings.EqualFold(p.Code, s) {
			return p, true
		}
	}
	return Province{}, false
}
