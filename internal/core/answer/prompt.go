package answer

import "strings"

// BuildAnswerPrompt は質問応答用のプロンプトを構築する
// contextText が空の場合は「根拠なし」であることを明示した指示に切り替える
func BuildAnswerPrompt(query string, contextText string) string {
	var sb strings.Builder

	sb.WriteString("あなたは取り込み済みドキュメントについて回答するアシスタントです。\n\n")

	sb.WriteString("## 回答のガイドライン\n")
	sb.WriteString("- コンテキストに含まれる情報のみを使用して回答してください\n")
	sb.WriteString("- コンテキストに答えがない場合は、情報が不足している旨を述べてください\n")
	sb.WriteString("- 情報を捏造しないでください\n\n")

	sb.WriteString("## コンテキスト\n")
	if contextText != "" {
		sb.WriteString(contextText)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("(このセッションには該当するドキュメントがありません。")
		sb.WriteString("根拠となる情報がないことを明示したうえで回答してください)\n\n")
	}

	sb.WriteString("## 質問\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString("## 回答\n")

	return sb.String()
}
