package ups

import (
	"strings"

	"github.com/tournevent/upsrate/pkg/shipper"
)

// DefaultServiceCode is the UPS Ground code, used for any unrecognized service level.
const DefaultServiceCode = "03"

// serviceCodes maps upper-cased service short names to UPS service codes.
var serviceCodes = map[string]string{
	"1DM":    "14",
	"1DA":    "01",
	"1DAPI":  "01",
	"1DP":    "13",
	"2DM":    "59",
	"2DA":    "02",
	"3DS":    DefaultServiceCode, // intentionally not 12 (3 Day Select)
	"GND":    "03",
	"GNDRES": "03",
	"GNDCOM": "03",
	"STD":    "11",
	"XPR":    "07",
	"XDM":    "54",
	"XPD":    "08",
}

var serviceNames = map[string]string{
	"01": "UPS Next Day Air",
	"02": "UPS 2nd Day Air",
	"03": "UPS Ground",
	"07": "UPS Worldwide Express",
	"08": "UPS Worldwide Expedited",
	"11": "UPS Standard",
	"12": "UPS 3 Day Select",
	"13": "UPS Next Day Air Saver",
	"14": "UPS Next Day Air Early",
	"54": "UPS Worldwide Express Plus",
	"59": "UPS 2nd Day Air A.M.",
}

// ServiceCode resolves a service short name (case-insensitive) to its UPS
// service code. Empty or unknown names resolve to DefaultServiceCode.
// Names are matched as given, so surrounding whitespace makes a name unknown.
func ServiceCode(level string) string {
	if code, ok := serviceCodes[strings.ToUpper(level)]; ok {
		return code
	}
	return DefaultServiceCode
}

// ServiceName returns the display name for a UPS service code.
func ServiceName(code string) string {
	if name, ok := serviceNames[code]; ok {
		return name
	}
	return "UPS Service " + code
}

func mapServiceType(code string) shipper.ServiceType {
	switch code {
	case "01", "13", "14":
		return shipper.ServiceOvernight
	case "02", "59", "12":
		return shipper.ServiceExpress
	case "07", "08", "54":
		return shipper.ServicePriority
	case "11":
		return shipper.ServiceEconomy
	default:
		return shipper.ServiceStandard
	}
}
