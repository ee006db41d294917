package schemas

import (
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tabular/internal/core"
)

func init() {
	core.RegisterNormalizer("fuel", NormalizeFuel)
	core.RegisterNormalizer("transmission", NormalizeTransmission)
	core.RegisterNormalizer("model_year", NormalizeModelYear)
	core.RegisterNormalizer("lot_number", NormalizeLotNumber)
}

// FuelTypes maps spellings seen in auction exports to the canonical fuel name.
var FuelTypes = map[string]string{
	"휘발유":      "가솔린",
	"가솔린":      "가솔린",
	"gasoline": "가솔린",
	"petrol":   "가솔린",
	"경유":       "디젤",
	"디젤":       "디젤",
	"diesel":   "디젤",
	"lpg":      "LPG",
	"lpi":      "LPG",
	"엘피지":      "LPG",
	"하이브리드":    "하이브리드",
	"hybrid":   "하이브리드",
	"hev":      "하이브리드",
	"전기":       "전기",
	"ev":       "전기",
	"electric": "전기",
	"수소":       "수소",
	"fcev":     "수소",
}

// NormalizeFuel converts a fuel spelling to its canonical name.
// Unrecognized values are returned trimmed.
func NormalizeFuel(s string) string {
	s = strings.TrimSpace(s)
	if v, ok := FuelTypes[strings.ToLower(s)]; ok {
		return v
	}
	// "가솔린+전기" style combinations
	if strings.Contains(s, "+") {
		return "하이브리드"
	}
	return s
}

// NormalizeTransmission maps gearbox spellings to 자동 or 수동.
func NormalizeTransmission(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "자동", "오토", "a/t", "at", "auto", "automatic", "cvt", "dct":
		return "자동"
	case "수동", "m/t", "mt", "manual", "stick":
		return "수동"
	}
	return s
}

// NormalizeModelYear strips a trailing 년 and expands two-digit years
// using the same pivot as date parsing.
func NormalizeModelYear(s string) string {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "년"))
	if len(s) != 2 {
		return s
	}
	yy, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	if yy <= time.Now().Year()%100+core.TwoDigitYearPivot {
		return strconv.Itoa(2000 + yy)
	}
	return strconv.Itoa(1900 + yy)
}

// NormalizeLotNumber upper-cases and removes inner spaces, so "a 12" and
// "A12" match.
func NormalizeLotNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
