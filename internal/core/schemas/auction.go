package schemas

import "github.com/JonMunkholm/tabular/internal/core"

// VehicleAuctionKey is the registry key of the vehicle auction listing.
const VehicleAuctionKey = "vehicle_auction"

func init() {
	registerVehicleAuction()
	registerAuctionResults()
}

func registerVehicleAuction() {
	core.RegisterSchema(core.Schema{
		Key:   VehicleAuctionKey,
		Group: "Auction",
		Label: "Vehicle listing",
		Fields: []core.FieldSpec{
			{Name: "lot_no", Aliases: []string{"출품번호", "경매번호", "Lot"}, Type: core.FieldText, Required: true, Normalizer: NormalizeLotNumber},
			{Name: "vehicle_name", Aliases: []string{"차량명", "차명", "모델명"}, Type: core.FieldText, Required: true},
			{Name: "price", Aliases: []string{"출품가", "시작가", "희망가"}, Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "mileage", Aliases: []string{"주행거리", "주행", "km"}, Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "model_year", Aliases: []string{"연식", "년식", "연형"}, Type: core.FieldNumeric, AllowEmpty: true, Normalizer: NormalizeModelYear},
			{Name: "fuel", Aliases: []string{"연료", "유종"}, Type: core.FieldEnum, AllowEmpty: true,
				EnumValues: []string{"가솔린", "디젤", "LPG", "하이브리드", "전기", "수소"}, Normalizer: NormalizeFuel},
			{Name: "transmission", Aliases: []string{"변속기", "미션"}, Type: core.FieldEnum, AllowEmpty: true,
				EnumValues: []string{"자동", "수동"}, Normalizer: NormalizeTransmission},
			{Name: "registered", Aliases: []string{"최초등록일", "등록일", "최초등록"}, Type: core.FieldDate, AllowEmpty: true},
			{Name: "color", Aliases: []string{"색상"}, Type: core.FieldText, AllowEmpty: true},
		},
	})
}

func registerAuctionResults() {
	core.RegisterSchema(core.Schema{
		Key:   "auction_results",
		Group: "Auction",
		Label: "Sale results",
		Fields: []core.FieldSpec{
			{Name: "lot_no", Aliases: []string{"출품번호", "경매번호", "Lot"}, Type: core.FieldText, Required: true, Normalizer: NormalizeLotNumber},
			{Name: "sold", Aliases: []string{"매각", "낙찰여부"}, Type: core.FieldBool, AllowEmpty: true},
			{Name: "hammer_price", Aliases: []string{"낙찰가", "매각가"}, Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "sale_date", Aliases: []string{"경매일", "매각일"}, Type: core.FieldDate, AllowEmpty: true},
		},
	})
}
