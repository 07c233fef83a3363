package flow

import (
	"fmt"
	"strings"

	"ukiyo/internal/provider"
)

// =============================================================================
// SEARCH PROMPTS
// =============================================================================

const searchTimeLayout = "2006-01-02 15:04:05"

func qualitySearchPrompt(now, topic string, history []provider.Turn) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research the most recent information available as of %s (UTC) on this topic: %s\n", now, topic)
	sb.WriteString("Follow these rules strictly:\n")
	sb.WriteString("- Write at least 1000 characters.\n")
	sb.WriteString("- Do not repeat earlier output; focus on new angles and additional facts.\n")
	sb.WriteString("- Write clearly and in a readable style.\n")
	if len(history) > 0 {
		sb.WriteString("\n\n[Reference: conversation so far]\n")
		for i, t := range history {
			if i > 0 {
				sb.WriteString("\n")
			}
			who := "AI"
			if provider.NormalizeRole(string(t.Role)) == provider.RoleUser {
				who = "User"
			}
			fmt.Fprintf(&sb, "%s: %s", who, t.Content)
		}
	}
	return sb.String()
}

func freshAngle(prompt string) string {
	return "Take a new perspective that does not overlap with the previous information and explain in more detail, in at least 1000 characters:\n" + prompt
}

const qualityComposeInstruction = "Keep the tone especially soft, friendly and approachable."

func qualityComposePrompt(research string) string {
	return "Turn the information below into an engaging, well-structured piece of writing.\n" +
		"Do not cut content; supplement it where useful so the result is at least 3000 characters.\n" +
		"Open with an introduction that draws the reader in and close with a natural conclusion.\n\n" + research
}

func superSearchFirstPrompt(now, topic string) string {
	return fmt.Sprintf("Research the most recent information available as of %s (UTC). Write a dense answer of at least 1000 characters on this topic:\n\n\"%s\"\n\n", now, topic) +
		"Before writing, make sure to:\n" +
		"1. Read every user memory and reflect any important instruction or preference in it (the prompt itself takes priority).\n" +
		"2. Read the whole chat history and keep its flow, background and earlier topics consistent.\n" +
		"3. Ignore token limits. Output shorter than 1000 characters is not acceptable."
}

func superSearchRoundPrompt(now, topic string, summaries []string) string {
	lines := make([]string, len(summaries))
	for i, s := range summaries {
		lines[i] = fmt.Sprintf("- Summary%d: %s...", i+1, head(s, 300))
	}
	return fmt.Sprintf("Research again the most recent information available as of %s (UTC).\n\n", now) +
		fmt.Sprintf("Topic: \"%s\"\n\n", topic) +
		"Information gathered so far (do not repeat it):\n" + strings.Join(lines, "\n") + "\n\n" +
		"This round:\n" +
		"- Produce a new answer of at least 1000 characters from viewpoints, angles and sources that do not overlap the summaries above.\n" +
		"- Approach it from other fields of expertise, concrete cases, regional differences, changes over time, statistics, regulation or public debate.\n" +
		"- Add concrete facts and wider context rather than paraphrasing or abstracting.\n\n" +
		"Always:\n" +
		"1. Read every user memory and use whatever is relevant.\n" +
		"2. Read the whole chat history and stay consistent with its context and purpose.\n" +
		"3. Write at least 1000 characters. If you cannot, search again from a new angle."
}

var roundMarks = []string{"①", "②", "③", "④", "⑤"}

func superSearchMergePrompt(results []string) string {
	var sb strings.Builder
	sb.WriteString("Below is information collected in five separate rounds.\nCombine it into one unified, readable and engaging piece of writing.\n\n")
	sb.WriteString("[Hard requirements]\n")
	sb.WriteString("- The output must be at least 5000 characters.\n")
	sb.WriteString("- Do not delete content; smooth the flow and supplement where useful.\n")
	sb.WriteString("- Use a structure that keeps the reader interested (introduction, development, conclusion) and shows the whole picture.\n")
	sb.WriteString("- Plan the overall structure so the points do not scatter.\n\n")
	sb.WriteString("[Information to use (five viewpoints)]\n---\n")
	for i, r := range results {
		mark := fmt.Sprintf("(%d)", i+1)
		if i < len(roundMarks) {
			mark = roundMarks[i]
		}
		fmt.Fprintf(&sb, "%s: %s\n---\n", mark, r)
	}
	sb.WriteString("\n[Before you start]\n")
	sb.WriteString("1. Read every user memory carefully and work in anything relevant naturally.\n")
	sb.WriteString("2. Read the whole chat history and avoid contradicting its context, tone or earlier discussion.\n")
	sb.WriteString("3. Ignore token limits and processing time; content quality comes first.")
	return sb.String()
}

const superSearchMergeInstruction = "You are an expert at merging several search results into one detailed, comprehensive report. " +
	"Using the information provided, write at least 5000 characters as instructed, without cutting content, and give it a clear structure."

// =============================================================================
// SUPER-WRITING PROMPTS
// =============================================================================

const (
	objectiveTone   = "Do not use the assistant persona's character or voice."
	markdownSpacing = "Leave generous line breaks between paragraphs and list items for readability. Use Markdown headings for titles and key sections."
)

func shortTextSearchPrompt(topic string) string {
	return fmt.Sprintf("Look up concise, essential information on the topic \"%s\".", topic)
}

func shortTextWritePrompt(topic, research string) string {
	return fmt.Sprintf("Using the information below, write a natural, concise short piece on the topic \"%s\":\n%s\n\n[Formatting]\n%s", topic, research, markdownSpacing)
}

const shortTextInstruction = "You are an expert at writing natural, concise, high-quality short texts from the information you are given. " +
	"Adapt the style to the user's instructions and topic; without explicit direction use a neutral, professional tone. " + objectiveTone

func thesisResearchPrompt(topic string) string {
	return fmt.Sprintf("Research up-to-date, reliable information comprehensively on the thesis/report topic \"%s\".\n", topic) +
		"This research is for academic purposes. Answer in an objective, analytical tone. " + objectiveTone
}

func thesisOutlinePrompt(topic, research string) string {
	return fmt.Sprintf("Based on the research below, draft a detailed outline (chapters and the main points of each section) for a thesis/report on \"%s\":\n%s", topic, research)
}

const thesisOutlineInstruction = "You are an expert at outlining academic papers. Make objective, structured proposals in a professional tone. " + objectiveTone

func thesisQuestionsPrompt(topic, research, outline string) string {
	return fmt.Sprintf("Review the research and outline below for the topic \"%s\". For each section, list the arguments to develop, the additional research needed and questions that deepen the discussion:\n", topic) +
		"Research summary:\n" + head(research, 1000) + "...\n\n" +
		"Outline:\n" + outline
}

const thesisQuestionsInstruction = "You are a research assistant who generates questions that deepen academic discussion. " +
	"Answer from an analytical, objective viewpoint in a professional tone. " + objectiveTone

func thesisDraftPrompt(topic, research, outline, questions string) string {
	return "\nWrite the body of an academic thesis/report based on the topic, research, outline and deepened points below.\n" +
		"Topic: " + topic + "\n\n" +
		"Summary of the initial research:\n" + head(research, 2000) + "...\n\n" +
		"Outline:\n" + outline + "\n\n" +
		"Deepened points and further questions:\n" + questions + "\n\n" +
		"Writing instructions:\n" +
		"- Integrate the information above into a logical, coherent thesis/report.\n" +
		"- Include a proper introduction, body (chapters and sections) and conclusion.\n" +
		"- Supplement information where needed and deepen the discussion.\n" +
		"- Use an academic style; write clearly and objectively.\n" +
		"- Break paragraphs and use Markdown headings (for example: ## Title) for chapters and sections.\n" +
		"- Leave generous line breaks between paragraphs and list items.\n" +
		"- Write any tables in Markdown.\n"
}

func thesisDraftInstruction(goal string) string {
	base := "Write the final thesis/report strictly in an academic style as instructed. " + objectiveTone + " Objectivity and logic come first."
	if strings.TrimSpace(goal) == "" {
		return base
	}
	return goal + "\n\n" + base
}

func summarySearchPrompt(topic string) string {
	return fmt.Sprintf("Collect information on the topic \"%s\".\n", topic) +
		"This is for analysis. Answer in an objective, factual tone. " + objectiveTone
}

func summaryStructurePrompt(text string) string {
	return "Analyze the information below and structure it into its main topics or sections. If it is a single text, organize its key points:\n" + text
}

const summaryStructureInstruction = "You are an expert at analyzing and structuring text. Organize the main topics and key points in an objective, logical tone. " + objectiveTone

func summaryClassifyPrompt(structured string) string {
	return "Based on the structured text or key points below, write a detailed summary, give the main classification and extract related keywords or tags:\n" + structured +
		"\n\n[Formatting]\nSeparate the summary, classification and keywords with Markdown headings. Break list items onto their own lines for readability."
}

const summaryClassifyInstruction = "You are an analysis assistant that summarizes, classifies and extracts keywords from text. " +
	"Answer objectively and concisely in the requested format. " + objectiveTone

// =============================================================================
// ITERATIVE DRAFTING PROMPTS
// =============================================================================

const (
	draftInstruction       = "You are an AI assistant helping to draft a long text in chunks. Ensure continuity with previous text if provided."
	refineInstruction      = "You are an AI assistant refining a draft. Focus on improving engagement, structure, and style."
	expandInstruction      = "You are an AI assistant expanding text to meet a target length. Add relevant details and ensure coherence."
	fixInstruction         = "You are an AI assistant revising text to fix consistency issues. Ensure the revised text is coherent and addresses the identified problems."
	truncatedPreviousTrail = "... (truncated previous text)"
)

// continuityContext frames a chunk with the goal, the topic and the tail of
// everything written so far.
func continuityContext(goal, topic, previous string) string {
	return fmt.Sprintf("Initial User Request: %s\n\nOverall Topic: %s\n\nPreviously Generated Text (ensure continuity with this, this is the last part of it):\n%s",
		goal, topic, previousTail(previous))
}

func previousTail(previous string) string {
	if charCount(previous) > ContinuityTailChars {
		return tail(previous, ContinuityTailChars) + truncatedPreviousTrail
	}
	return previous
}

func draftPrompt(ctxText string, target, index, total int) string {
	return fmt.Sprintf("%s\n\nPlease write the next part of the text, aiming for approximately %d characters. This is chunk %d of %d. "+
		"Focus on generating new content for the current chunk, building upon the previously generated text if available.",
		ctxText, target, index, total)
}

func refinePrompt(ctxText, draft string, target, index, total int) string {
	return fmt.Sprintf("%s\n\nAI-Generated Draft to Refine:\n%s\n\nPlease refine this draft to be more engaging, well-structured, and stylistically appealing, "+
		"while ensuring the character count does not decrease significantly from the target of %d characters. This is for chunk %d of %d.",
		ctxText, draft, target, index, total)
}

func lengthJudgePrompt(text string, target, index, total int) string {
	return fmt.Sprintf("The following text is chunk %d of %d. The target length is %d characters. Current text (length %d):\n%s\n\n"+
		"Is the length of this text significantly less than %d characters? Answer with only 'YES' or 'NO'. "+
		"If it's reasonably close (e.g. 80%% or more) or over, answer 'NO'.",
		index, total, target, charCount(text), text, target)
}

func expandPrompt(ctxText, text string, target, index, total int) string {
	return fmt.Sprintf("%s\n\nPreviously Generated Text for this Chunk (too short, current length %d):\n%s\n\n"+
		"Please expand this text significantly to meet the target of approximately %d characters for chunk %d of %d. "+
		"Add more details, examples, or elaborations as appropriate. Ensure the expansion is coherent and maintains quality.",
		ctxText, charCount(text), text, target, index, total)
}

func consistencyJudgePrompt(goal, topic, previous, text string, index, total int) string {
	return fmt.Sprintf("Initial User Request: %s\nOverall Topic: %s\nPreviously Generated Text (ensure continuity with this, this is the last part of it):\n%s\n\n"+
		"Current Chunk Draft (chunk %d of %d):\n%s\n\n"+
		"Review the 'Current Chunk Draft'. Are there any plot holes, setting errors, character inconsistencies, or factual contradictions "+
		"when compared to the 'Previously Generated Text' or the 'Initial User Request' and 'Overall Topic'? "+
		"If major issues exist, describe them briefly (e.g., 'The character John was previously described as a doctor, but is now a pilot.'). "+
		"If no major issues, answer ONLY with the exact phrase '%s'.",
		goal, topic, previousTail(previous), index, total, text, NoIssuesSentinel)
}

func fixPrompt(ctxText, text, issues string, target, index, total int) string {
	return fmt.Sprintf("%s\n\nText of Current Chunk (chunk %d of %d):\n%s\n\n"+
		"An automated check found the following consistency issues with previously generated text or overall request: '%s'.\n"+
		"Please revise the 'Text of Current Chunk' to address these issues while maintaining its core content and target length of approximately %d characters.",
		ctxText, index, total, text, issues, target)
}

// =============================================================================
// WRITING MODE PROMPTS
// =============================================================================

func purposeLine(goal, request string) string {
	return fmt.Sprintf("The main purpose of this whole conversation is \"%s\", and the user's original request was \"%s\".", goal, request)
}

func writingRequirementsInstruction(goal string) string {
	return "You are an editorial assistant who analyzes a wide range of writing requests and clarifies the elements needed to produce high-quality content.\n" +
		fmt.Sprintf("The main purpose of this whole conversation is \"%s\".\n", goal)
}

func writingRequirementsPrompt(request string) string {
	return fmt.Sprintf("The user wants the following written.\nWriting request: \"%s\"\n\n", request)
}

func writingRequirements(request, goal, analysis string) string {
	guidance := fmt.Sprintf(`
[Supplementary guidance for open questions from the requirements step]
- Kind of writing: infer it as far as possible from the request "%[1]s". If it stays unclear, assume the most likely kind or offer options.
- Audience: consider the readers implied by "%[1]s", or the usual audience for that kind of writing.
- Tone: give priority to any mood expressed in "%[1]s" (funny, serious, moving and so on).
- Key elements: centre the keywords, themes, characters and events in "%[1]s".
- Volume: respect the volume proposed in the requirements step. Without one, assume the usual length for the kind of writing.
- Other: consider what the user wants to achieve with the piece (inform, entertain, persuade, record).
`, request)
	return fmt.Sprintf("User's initial request: \"%s\"\n\nMain purpose of the conversation: \"%s\"\n\nRequirements analysis (W0):\n%s\n\n%s",
		request, goal, analysis, guidance)
}

func writingOutlineInstruction(goal, request string) string {
	return "You are an experienced editor, author, scenario writer or researcher.\n" +
		"From the detailed writing requirements, build an outline suited to the kind of writing that is logical, easy to follow and engaging for the audience.\n" +
		purposeLine(goal, request)
}

func writingOutlinePrompt(requirements string) string {
	return "Create an outline (or plot, or chapter plan) suited to the kind of writing, based on the detailed requirements below.\n" +
		"--- Final requirements ---\n" + requirements + "\n--- End of requirements ---\n"
}

func writingDraftInstruction(goal, request string) string {
	return "You are a professional writer, novelist, researcher or screenwriter.\n" +
		"Write an engaging, clear first draft from the outline and detailed requirements you are given.\n" +
		purposeLine(goal, request)
}

func writingDraftPrompt(requirements, outline string) string {
	return "Write the first draft from the requirements and outline (or plot) below.\n" +
		"--- Final requirements ---\n" + requirements + "\n--- End of requirements ---\n\n" +
		"--- Outline ---\n" + outline + "\n--- End of outline ---\n"
}

func writingReviewInstruction(goal, request string) string {
	return "You are an experienced professional editor. Read the draft, the original requirements and the outline carefully, then give a detailed review with concrete suggestions.\n" +
		purposeLine(goal, request)
}

func writingReviewPrompt(requirements, outline, draft string) string {
	return "Please review the draft below as a professional editor and give concrete suggestions for improvement.\n\n" +
		"--- Original requirements ---\n" + requirements + "\n--- End of requirements ---\n\n" +
		"--- Outline prepared beforehand ---\n" + outline + "\n--- End of outline ---\n\n" +
		"--- First draft ---\n" + draft + "\n--- End of draft ---\n\n" +
		"Following the system instructions, list several sharp observations and concrete improvements that would make this draft more engaging and of higher quality."
}

func writingRewriteInstruction(goal, request string) string {
	return "You are a professional editor and writer. Understand the draft and the detailed review of it, then revise and rewrite the whole piece so that every point raised is addressed.\n" +
		purposeLine(goal, request) + "\n"
}

func writingRewritePrompt(draft, review string) string {
	return "Below are a draft and a review with suggestions for improvement.\n" +
		"Revise and rewrite the draft thoroughly into a higher-quality second draft.\n\n" +
		"--- First draft ---\n" + draft + "\n--- End of draft ---\n\n" +
		"--- Review and suggestions ---\n" + review + "\n--- End of review ---\n\n"
}

func writingFinalInstruction(goal, request string) string {
	return strings.Join([]string{
		"You are the chief editor and final writer. Polish the second draft into a flawless final version following the instructions below.",
		"Output only the body of the piece. Do not include outlines, explanations, story guides, comments or anything else. If the output stops midway, continue with body text only.",
		"\nAlways keep in mind: " + purposeLine(goal, request),
	}, "\n\n")
}

func writingFinalPrompt(revised string) string {
	return "Proofread and finish the second draft below according to the system instructions, in the requested tone if any.\n" +
		"Output only the body text, with no guidance, comments or outline notes. If more is needed, append body text only.\n\n" +
		"--- Second draft ---\n" + revised + "\n--- End of second draft ---\n\n"
}

// =============================================================================
// ULTRA WRITING PROMPTS
// =============================================================================

const (
	outlineInstruction   = "Long Form Outline Generator"
	chapterInstruction   = "Chapter Writer: output only the body text, without chapter titles or guidance. Be detailed and concrete."
	expansionInstruction = "Expansion Writer: extend the given text naturally and enrich its detail. Output only the continued body text. No comments or guidance."
)

func outlinePrompt(request string) string {
	return "Propose a chapter structure for the following:\n" + request
}

func chapterPrompt(title, soFar string) string {
	p := fmt.Sprintf("Write the detailed body text for the chapter \"%s\".", title)
	if soFar != "" {
		p += fmt.Sprintf("\n\nBriefly, the story or main flow so far was: \"%s...\"\nContinue writing with that in mind.", tail(soFar, 500))
	}
	return p
}

func nextChapterTurn(title string) string {
	return fmt.Sprintf("Thank you. Please move on to the next chapter, \"%s\".", title)
}

const (
	allChaptersDoneTurn = "Thank you. All chapters are now complete."
	expandMoreTurn      = "Thank you. Please expand the content further."
)

func expansionPrompt(soFar string) string {
	return "The text so far is:\n" + tail(soFar, 1000) + "...\n\n" +
		"Expand the whole text in more detail and more concretely: richer description for a story, more examples and supporting information for an explanation."
}

// =============================================================================
// MISC
// =============================================================================

const fastChatInstruction = "Fast Chat Mode"

func apology(err string) string {
	return "Sorry, an error occurred while processing.\nError: " + err
}
