package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-chat/cmd/doc-chat/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "doc-chat",
		Usage: "セッション単位のドキュメント検索・質問応答システム",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "ドキュメント取り込みコマンド",
				Commands: []*cli.Command{
					{
						Name:  "file",
						Usage: "ローカルファイルを取り込む",
						Flags: []cli.Flag{
							envFlag(),
							sessionFlag(),
							&cli.StringFlag{
								Name:     "path",
								Usage:    "取り込むファイルのパス",
								Required: true,
							},
						},
						Action: commands.IngestFileAction,
					},
					{
						Name:  "url",
						Usage: "Webページを取り込む",
						Flags: []cli.Flag{
							envFlag(),
							sessionFlag(),
							&cli.StringFlag{
								Name:     "url",
								Usage:    "取り込むWebページのURL",
								Required: true,
							},
						},
						Action: commands.IngestURLAction,
					},
					{
						Name:  "dir",
						Usage: "ディレクトリ配下の対応ファイルを一括で取り込む",
						Flags: []cli.Flag{
							envFlag(),
							sessionFlag(),
							&cli.StringFlag{
								Name:     "dir",
								Usage:    "取り込むディレクトリのパス（.gitignore を尊重）",
								Required: true,
							},
						},
						Action: commands.IngestDirAction,
					},
				},
			},
			{
				Name:  "ask",
				Usage: "取り込んだドキュメントに基づいて質問に回答",
				Flags: []cli.Flag{
					envFlag(),
					sessionFlag(),
					&cli.StringFlag{
						Name:     "query",
						Usage:    "質問文",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "検索するチャンク数（省略時は設定値）",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "類似度の下限 0.0〜1.0（省略時は設定値）",
					},
					&cli.StringFlag{
						Name:  "source-type",
						Usage: "ソース種別で絞り込み (document/web)",
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:  "session",
				Usage: "セッション管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "docs",
						Usage: "セッション内の登録済みドキュメントを表示",
						Flags: []cli.Flag{
							envFlag(),
							sessionFlag(),
						},
						Action: commands.SessionDocsAction,
					},
					{
						Name:  "clear",
						Usage: "セッションのドキュメントを削除",
						Flags: []cli.Flag{
							envFlag(),
							sessionFlag(),
						},
						Action: commands.SessionClearAction,
					},
					{
						Name:  "status",
						Usage: "コレクションの使用状況を表示",
						Flags: []cli.Flag{
							envFlag(),
						},
						Action: commands.SessionStatusAction,
					},
				},
			},
			{
				Name:  "reset",
				Usage: "全セッションのドキュメントを削除",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "all",
						Usage: "全削除を実行することを確認",
					},
				},
				Action: commands.ResetAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// envFlag は全コマンド共通の環境変数ファイル指定フラグ
func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

// sessionFlag は対象セッションの指定フラグ
func sessionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "session",
		Usage: "セッションID",
		Value: commands.DefaultSession,
	}
}
