package analyzer

import "strings"

// analysisSections is the structured form of the model's sectioned-markdown
// reply.
type analysisSections struct {
	summary    string
	highlights []string
	techStack  []string
	useCases   []string
}

// parseSections walks the reply line by line, switching sections on the
// "## <名称>" headers the prompt asks for. Unknown headers end the current
// section. 适合人群 and 发展潜力 both land in useCases, in reply order.
func parseSections(content string) analysisSections {
	var (
		result  analysisSections
		section string
	)

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "## 摘要"):
			section = "summary"
		case strings.HasPrefix(line, "## 亮点"):
			section = "highlights"
		case strings.HasPrefix(line, "## 技术栈"):
			section = "tech_stack"
		case strings.HasPrefix(line, "## 适合人群"), strings.HasPrefix(line, "## 发展潜力"):
			section = "use_cases"
		case strings.HasPrefix(line, "#"):
			section = ""
		default:
			appendLine(&result, section, line)
		}
	}

	return result
}

func appendLine(result *analysisSections, section, line string) {
	switch section {
	case "summary":
		if result.summary != "" {
			result.summary += " "
		}
		result.summary += line
	case "highlights":
		if strings.HasPrefix(line, "- ") {
			result.highlights = append(result.highlights, strings.TrimSpace(line[2:]))
		}
	case "tech_stack":
		for _, tech := range strings.Split(line, ",") {
			if tech = strings.TrimSpace(tech); tech != "" {
				result.techStack = append(result.techStack, tech)
			}
		}
	case "use_cases":
		result.useCases = append(result.useCases, strings.TrimPrefix(line, "- "))
	}
}
