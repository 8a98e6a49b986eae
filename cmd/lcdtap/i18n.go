// Package main provides localization for the lcdtap CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Capture a handheld LCD through a Glasgow display tap.": "Glasgow ディスプレイタップで携帯機の LCD をキャプチャします。",

		// Version command
		"lcdtap version %s": "lcdtap バージョン %s",

		// Summary sections
		"Capture Summary": "キャプチャサマリー",
		"Session":         "セッション",
		"Frames":          "フレーム",
		"Stream":          "ストリーム",
		"Sinks":           "シンク",
		"Item":            "項目",
		"Value":           "値",

		// Session rows
		"Source":        "ソース",
		"Input":         "入力",
		"Recorded To":   "記録先",
		"Device":        "デバイス",
		"Display":       "ディスプレイ",
		"Header Layout": "ヘッダーレイアウト",
		"Duration":      "所要時間",
		"live":          "ライブ",
		"replay":        "再生",
		"simulated":     "シミュレーション",

		// Frame rows
		"Frames Emitted":        "出力フレーム数",
		"Duplicates":            "重複フレーム",
		"Row Discontinuities":   "行の不連続",
		"Frame Discontinuities": "フレームの不連続",
		"Average Frame Rate":    "平均フレームレート",

		// Stream rows
		"Scanlines":     "走査線",
		"Artifact Rows": "アーティファクト行",
		"Lost Sync":     "同期喪失",
		"Timeouts":      "タイムアウト",
		"Overflows":     "オーバーフロー",

		// Sink table
		"Sink":      "シンク",
		"Delivered": "配信",
		"Failed":    "失敗",
		"Dropped":   "破棄",

		"Generated at": "生成日時",
	})
}
