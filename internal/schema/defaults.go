// Package schema owns the built-in field settings per record type, the
// hydration of persisted settings against those defaults, and the JSON
// settings file read at startup and written on every settings edit.
package schema

import "github.com/kaigo-ai/carelog/internal/model"

// defaultFields is the built-in master field configuration. The
// descriptions tell the extraction service exactly what belongs in
// each field, so hydration refreshes them aggressively (see Hydrate).
var defaultFields = model.Schema{
	model.RecordMeal: {
		{Key: "main_dish", Label: "主食内容", Description: "食べた主食の種類（例：全粥、ご飯、パン）。量は含めない。"},
		{Key: "side_dish", Label: "副食内容", Description: "食べたおかずの内容。"},
		{Key: "amount_percent", Label: "摂取率(%)", Description: "食事全体の摂取割合。数値のみ（例：80）。"},
		{Key: "fluid_type", Label: "水分種類", Description: "摂取した水分の名称のみ（例：お茶、水）。量はここには入れない。"},
		{Key: "fluid_ml", Label: "水分摂取量(ml)", Description: "摂取した水分の量。数値のみ（例：200）。"},
	},
	model.RecordExcretion: {
		{Key: "excretion_type", Label: "種類(尿/便)", Description: "排泄物の種類（尿、便）。"},
		{Key: "amount", Label: "量", Description: "排泄量（多量、普通、少量など）。"},
		{Key: "characteristics", Label: "性状・状態", Description: "便や尿の状態（泥状、普通、血尿など）。"},
		{Key: "incontinence", Label: "失禁有無", Description: "失禁があったかどうか。"},
	},
	model.RecordVital: {
		{Key: "temperature", Label: "体温(℃)", Description: "体温の数値（例：36.5）。"},
		{Key: "systolic_bp", Label: "血圧(上)", Description: "収縮期血圧の数値（高い方）。"},
		{Key: "diastolic_bp", Label: "血圧(下)", Description: "拡張期血圧の数値（低い方）。"},
		{Key: "pulse", Label: "脈拍(回/分)", Description: "脈拍数。"},
		{Key: "spo2", Label: "SpO2(%)", Description: "酸素飽和度。"},
	},
	model.RecordHygiene: {
		{Key: "bath_type", Label: "入浴形態", Description: "入浴の方法（全身浴、シャワー浴、清拭など）。"},
		{Key: "skin_condition", Label: "皮膚状態", Description: "皮膚の異常や状態（発赤、剥離など）。"},
		{Key: "notes", Label: "特記事項", Description: "処置内容や特記事項。"},
	},
	model.RecordOther: {
		{Key: "title", Label: "件名", Description: "記録のタイトル。"},
		{Key: "detail", Label: "詳細", Description: "記録の詳細内容。"},
	},
}

// Defaults returns a copy of the built-in field settings.
func Defaults() model.Schema {
	return defaultFields.Clone()
}

// DefaultFields returns a copy of the built-in field list for one type.
func DefaultFields(t model.RecordType) []model.FieldDefinition {
	fields := defaultFields[t]
	cp := make([]model.FieldDefinition, len(fields))
	copy(cp, fields)
	return cp
}
