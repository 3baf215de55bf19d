package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-chat/internal/core/answer"
	"github.com/jinford/doc-chat/internal/core/retrieval"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.String("query")
	sessionID := cmd.String("session")
	topK := cmd.Int("top-k")
	threshold := cmd.Float64("threshold")
	sourceType := cmd.String("source-type")
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("質問応答を開始", "session", sessionID, "topK", topK, "threshold", threshold)

	result, err := appCtx.Container.AnswerService.Answer(ctx, retrieval.Params{
		Query:      query,
		SessionID:  sessionID,
		SourceType: sourceType,
		TopK:       topK,
		Threshold:  threshold,
	})
	if err != nil {
		// LLM到達失敗時も検索結果は得られているため、引用だけ提示して縮退する
		if errors.Is(err, answer.ErrLLMUnavailable) && result != nil {
			fmt.Println("LLMに接続できなかったため、回答を生成できませんでした。")
			printCitations(result.Citations)
			return err
		}
		return err
	}

	fmt.Println(result.Answer)
	fmt.Println()
	if result.Sourceless {
		fmt.Println("(このセッションに該当するドキュメントが見つからなかったため、一般知識で回答しています)")
		return nil
	}
	printCitations(result.Citations)
	return nil
}

// printCitations は引用元のソース一覧を表示する
func printCitations(citations []answer.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Println("参照ソース:")
	for _, c := range citations {
		fmt.Printf("  - %s (score: %.3f)\n", c.SourceName, c.Score)
	}
}
