package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Starting capture from %s":           "%s からキャプチャを開始します",
		"Recording stream to %s":             "ストリームを %s に記録中",
		"Overwriting existing record log %s": "既存の記録ログ %s を上書きします",
		"Replaying %s":                       "%s を再生中",
		"Using simulated device":             "シミュレートされたデバイスを使用します",
		"Interrupted, shutting down...":      "中断されました。シャットダウン中...",
		"Preview closed, shutting down...":   "プレビューが閉じられました。シャットダウン中...",
		"Session finished in %s":             "セッションが %s で終了しました",
		"Summary saved to %s":                "サマリーを %s に保存しました",

		// Device
		"Opened device %04x:%04x":                    "デバイス %04x:%04x を開きました",
		"Uploaded bitstream (%d bytes in %d chunks)": "ビットストリームをアップロードしました (%d バイト, %d チャンク)",

		// Capture and replay
		"Capture loop started with %d byte reads": "%d バイト単位でキャプチャループを開始しました",
		"Capture loop stopped after %d chunks":    "%d チャンクでキャプチャループを停止しました",
		"Bulk read failed: %v":                    "バルク読み取りに失敗しました: %v",
		"Replay finished after %d chunks":         "%d チャンクで再生が終了しました",

		// Assembly
		"Assembling %dx%d frames":                                 "%dx%d のフレームを組み立て中",
		"Assembled %d frames (%d duplicates, %d lost sync) in %s": "%d フレームを組み立てました (重複 %d, 同期喪失 %d) 所要時間 %s",

		// Sinks
		"Registered sink %s (visual=%t, lossy=%t)":         "シンク %s を登録しました (visual=%t, lossy=%t)",
		"Sink %s closed after %d frames":                   "シンク %s を %d フレームで閉じました",
		"Writing GIF to %s with %d cs frame delay":         "フレーム遅延 %d cs で GIF を %s に書き込み中",
		"GIF saved to %s (%d frames)":                      "GIF を %s に保存しました (%d フレーム)",
		"Encoding %dx%d video at %.1f fps with quality %d": "%dx%d の動画を %.1f fps、品質 %d でエンコード中",
		"Video saved to %s (%d frames, %d bytes)":          "動画を %s に保存しました (%d フレーム, %d バイト)",
		"Saved %d frames to %s":                            "%d フレームを %s に保存しました",
		"Preview window opened at %dx scale":               "プレビューウィンドウを %d 倍で開きました",
		"Preview window closed":                            "プレビューウィンドウが閉じられました",
		"Preview render failed: %v":                        "プレビューの描画に失敗しました: %v",

		// Warnings
		"Row discontinuity: expected %d, got %d":           "行の不連続: %d を期待しましたが %d でした",
		"Frame discontinuity: expected %d, got %d":         "フレームの不連続: %d を期待しましたが %d でした",
		"Lost sync: %v":                                    "同期を失いました: %v",
		"Device FIFO overflow reported at frame %d row %d": "フレーム %d 行 %d でデバイスの FIFO オーバーフローが報告されました",

		// Errors
		"Sink %s failed: %v":                       "シンク %s でエラーが発生しました: %v",
		"Recording failed, disabling recorder: %v": "記録に失敗したため記録を無効にします: %v",
		"Session failed: %v":                       "セッションが失敗しました: %v",
		"Record log is corrupt: %v":                "記録ログが破損しています: %v",
	})
}
