package bot

// MaxBlockLength is the longest text put into one code block, so the block stays below Discord's 2000 characters.
const MaxBlockLength = 1994

// SplitCodeBlocks wraps content into as many code blocks as needed to respect MaxBlockLength.
// It always returns at least one block.
func SplitCodeBlocks(content string) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return []string{codeBlock("")}
	}

	blocks := make([]string, 0, len(runes)/MaxBlockLength+1)
	for len(runes) > 0 {
		n := min(len(runes), MaxBlockLength)
		blocks = append(blocks, codeBlock(string(runes[:n])))
		runes = runes[n:]
	}
	return blocks
}

func codeBlock(s string) string {
	return "```" + s + "```"
}
