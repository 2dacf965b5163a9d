package rates

import (
	"strings"

	"zeiterfassung-backend/internal/model"
)

// Service is the billing category inferred from a site name.
type Service string

const (
	ServiceStandard Service = "standard"
	ServiceWindow   Service = "window"
	ServiceBasic    Service = "basic"
)

// Defaults for unset per-employee rates.
const (
	DefaultStandardRate = 15.00
	DefaultWindowRate   = 20.00
	DefaultBasicRate    = 20.00
)

// rateRule maps any of its keywords, matched case-insensitively as substrings
// of the site name, to a service.
type rateRule struct {
	keywords []string
	service  Service
}

// rateTable is evaluated top to bottom; the first match wins.
var rateTable = []rateRule{
	{keywords: []string{"fenster", "window"}, service: ServiceWindow},
	{keywords: []string{"grund", "basic"}, service: ServiceBasic},
	{keywords: []string{"büro", "zentrale"}, service: ServiceWindow},
}

// Classify returns the service of a site name. Names matching no rule are standard.
func Classify(siteName string) Service {
	name := strings.ToLower(siteName)
	for _, rule := range rateTable {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.service
			}
		}
	}
	return ServiceStandard
}

// RateFor returns the employee's hourly rate for work at the named site.
func RateFor(emp model.Employee, siteName string) float64 {
	return RateForService(emp, Classify(siteName))
}

// RateForService reads the employee's rate field for svc, with defaults for unset rates.
func RateForService(emp model.Employee, svc Service) float64 {
	switch svc {
	case ServiceWindow:
		return orDefault(emp.HourlyRateWindow, DefaultWindowRate)
	case ServiceBasic:
		return orDefault(emp.HourlyRateBasic, DefaultBasicRate)
	}
	return orDefault(emp.HourlyRateStandard, DefaultStandardRate)
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
