package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// SessionDocsAction はセッション内の登録済みソース一覧を表示するコマンドのアクション
func SessionDocsAction(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.String("session")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	sources, err := appCtx.Container.SessionService.ListSources(ctx, sessionID)
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		fmt.Printf("セッション %q に登録済みのドキュメントはありません\n", sessionID)
		return nil
	}

	fmt.Printf("セッション %q の登録済みドキュメント:\n", sessionID)
	for _, src := range sources {
		fmt.Printf("  - %s (%s, チャンク数: %d)\n", src.SourceName, src.SourceType, src.ChunkCount)
	}
	return nil
}

// SessionClearAction はセッションの全レコードを削除するコマンドのアクション
func SessionClearAction(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.String("session")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("セッションの削除を開始", "session", sessionID)

	if err := appCtx.Container.SessionService.Clear(ctx, sessionID); err != nil {
		return err
	}

	fmt.Printf("セッション %q のドキュメントを削除しました\n", sessionID)
	return nil
}

// SessionStatusAction はコレクションの使用状況を表示するコマンドのアクション
func SessionStatusAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	status, err := appCtx.Container.SessionService.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("レコード数: %d\n", status.RecordCount)
	if status.Quota > 0 {
		fmt.Printf("上限: %d (使用率: %.1f%%)\n", status.Quota, status.UsagePercent())
	} else {
		fmt.Println("上限: なし")
	}
	return nil
}

// ResetAction は全セッションの全レコードを削除するコマンドのアクション
func ResetAction(ctx context.Context, cmd *cli.Command) error {
	all := cmd.Bool("all")
	envFile := cmd.String("env")

	// 全削除は不可逆のため明示的な --all を要求する
	if !all {
		return fmt.Errorf("reset は全セッションのデータを削除します。実行するには --all を指定してください")
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("コレクションの初期化を開始")

	if err := appCtx.Container.SessionService.Reset(ctx); err != nil {
		return err
	}

	fmt.Println("全セッションのドキュメントを削除しました")
	return nil
}
