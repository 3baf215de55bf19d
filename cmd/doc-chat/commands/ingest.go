package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-chat/internal/core/ingestion"
)

// IngestFileAction はローカルファイルを取り込むコマンドのアクション
func IngestFileAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	sessionID := cmd.String("session")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("ファイル取り込みを開始", "path", path, "session", sessionID)

	text, err := appCtx.Container.Registry.ParseFile(path)
	if err != nil {
		return fmt.Errorf("ファイルの読み取りに失敗: %w", err)
	}

	source := ingestion.Source{
		Type: ingestion.SourceTypeDocument,
		Name: filepath.Base(path),
		Text: text,
	}

	stats, err := appCtx.Container.IngestService.Ingest(ctx, source, sessionID)
	if err != nil {
		return reportIngestError(err)
	}

	printIngestStats(source.Name, stats)
	return nil
}

// IngestURLAction はWebページを取り込むコマンドのアクション
func IngestURLAction(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.String("url")
	sessionID := cmd.String("session")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("Webページ取り込みを開始", "url", rawURL, "session", sessionID)

	page, err := appCtx.Container.WebFetcher.Fetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("Webページの取得に失敗: %w", err)
	}

	source := ingestion.Source{
		Type: ingestion.SourceTypeWeb,
		Name: rawURL,
		Text: page.Text,
	}

	stats, err := appCtx.Container.IngestService.Ingest(ctx, source, sessionID)
	if err != nil {
		return reportIngestError(err)
	}

	printIngestStats(rawURL, stats)
	return nil
}

// IngestDirAction はディレクトリ配下の対応ファイルを一括で取り込むコマンドのアクション
func IngestDirAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	sessionID := cmd.String("session")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("ディレクトリ取り込みを開始", "dir", dir, "session", sessionID)

	files, err := appCtx.Container.DirLoader.ListFiles(dir)
	if err != nil {
		return fmt.Errorf("ディレクトリの走査に失敗: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("取り込み対象のファイルが見つかりませんでした")
		return nil
	}

	var ingested, skipped, failed int
	for _, path := range files {
		text, err := appCtx.Container.Registry.ParseFile(path)
		if err != nil {
			slog.Warn("ファイルの読み取りをスキップ", "path", path, "error", err)
			failed++
			continue
		}

		source := ingestion.Source{
			Type: ingestion.SourceTypeDocument,
			Name: filepath.Base(path),
			Text: text,
		}

		stats, err := appCtx.Container.IngestService.Ingest(ctx, source, sessionID)
		if err != nil {
			// 容量超過は以降のファイルも失敗するため打ち切る
			if errors.Is(err, ingestion.ErrQuotaExceeded) {
				slog.Error("ストレージ容量の上限に達しました", "path", path)
				failed++
				break
			}
			slog.Warn("ファイルの取り込みに失敗", "path", path, "error", err)
			failed++
			continue
		}

		if stats.Skipped {
			skipped++
		} else {
			ingested++
		}
	}

	fmt.Printf("取り込み完了: %d件取り込み / %d件スキップ(登録済み) / %d件失敗\n", ingested, skipped, failed)
	return nil
}

// reportIngestError は取り込みエラーをユーザー向けのメッセージに整える
func reportIngestError(err error) error {
	switch {
	case errors.Is(err, ingestion.ErrQuotaExceeded):
		return fmt.Errorf("ストレージ容量の上限に達しています。session clear で空き容量を確保してください: %w", err)
	case errors.Is(err, ingestion.ErrEmbeddingUnavailable):
		return fmt.Errorf("埋め込みサービスに接続できません。プロバイダの設定を確認してください: %w", err)
	case errors.Is(err, ingestion.ErrVectorStoreUnavailable):
		return fmt.Errorf("ベクトルストアに接続できません。バックエンドの起動状態を確認してください: %w", err)
	default:
		return err
	}
}

// printIngestStats は取り込み結果を標準出力に表示する
func printIngestStats(name string, stats *ingestion.IngestStats) {
	if stats.Skipped {
		fmt.Printf("%q は取り込み済みのためスキップしました\n", name)
		return
	}
	fmt.Printf("%q を取り込みました (チャンク数: %d, トークン数: %d)\n", name, stats.ChunksCreated, stats.TokenCount)
}
