package generation

import (
	"fmt"
	"strings"

	"reimagine-studio/internal/models"
)

const technicalSpecs = "8k resolution, photorealistic, highly detailed, professional lighting, depth of field, sharp focus"

func modeRole(mode models.Mode) string {
	switch mode {
	case models.ModeInterior:
		return "Interior Design Visualization. Preserve structural integrity (walls, ceiling, floor plan)."
	case models.ModeProduct:
		return "High-End Product Photography. Product is the hero. Perfect commercial lighting."
	default:
		return "Brand Asset Creation. Seamless integration of logo/art onto surface."
	}
}

// BuildPrompt wraps an instruction with the mode's role and the fixed
// rendering specs. referenceDescription and analysis are optional.
func BuildPrompt(mode models.Mode, instruction, referenceDescription, analysis string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s.", modeRole(mode), strings.TrimSpace(instruction))
	if referenceDescription != "" {
		fmt.Fprintf(&b, " MATCH STYLE OF REFERENCE: %s.", referenceDescription)
	}
	if analysis != "" {
		fmt.Fprintf(&b, " Ensure lighting matches subject: %s.", analysis)
	}
	fmt.Fprintf(&b, " %s.", technicalSpecs)
	return b.String()
}

// StyleTransferInstruction is used when the subject and a style reference
// are sent together: image 1 is the subject, image 2 the reference.
func StyleTransferInstruction(task string) string {
	return fmt.Sprintf(`Image 1 is the SUBJECT (Preserve the structure, layout, and key product/room details).
Image 2 is the STYLE REFERENCE (Transfer the lighting, color palette, texture, and mood).

Task: %s.
Strictly apply the visual style of Image 2 onto Image 1.
Maintain the perspective and geometry of Image 1.`, task)
}

// AnalyzePrompt asks for four style suggestions as a JSON object.
func AnalyzePrompt(mode models.Mode) string {
	var ask string
	switch mode {
	case models.ModeInterior:
		ask = "Analyze this room. Identify the room type and key architectural features. Suggest 4 distinct redesign styles that respect the geometry."
	case models.ModeProduct:
		ask = "Analyze this product. Identify what it is (e.g. perfume, shoe, drink). Suggest 4 distinct advertising backgrounds that fit this specific product perfectly."
	default:
		ask = "Analyze this image (Logo or Art). Suggest 4 creative mockup placements (e.g. on a building, a hoodie, a coffee cup) that would look professional."
	}
	return ask + ` Return JSON: {"suggestions": [{"label": "Short Title", "description": "Why it fits", "prompt": "Full generation prompt", "color": "Tailwind gradient class (e.g. from-blue-500 to-cyan-500)"}]}`
}

const styleReferencePrompt = `Act as a professional Visual Director.
Analyze the provided reference image to extract a comprehensive "Style DNA" for a style transfer task.

Deconstruct the image into these core visual pillars:
1. Lighting Design: the precise setup, shadows and highlights.
2. Color Science: the palette and grading.
3. Material Physics: the dominant textures.
4. Atmosphere: the intangible mood.

Combine these into a dense, high-fidelity descriptive paragraph.
Do NOT mention the subject matter. ONLY describe the aesthetic qualities so they can be applied to any subject.`

// ChatSystemInstruction makes the consultant tag every visual suggestion
// with [VISUALIZE: Style Name].
func ChatSystemInstruction(mode models.Mode) string {
	return fmt.Sprintf(`You are an expert design consultant for %s.
Keep answers concise, professional, and helpful.

CRITICAL RULE FOR SUGGESTIONS:
Whenever you suggest a specific visual style, color change, or design modification, you MUST enable the user to visualize it by appending a tag in this exact format: [VISUALIZE: Style Name].

Examples:
- "I suggest a [VISUALIZE: Warm Industrial] look for this room."
- "You could try [VISUALIZE: Soft Pastel Lighting] or maybe [VISUALIZE: Dramatic Noir]."

Do not output markdown links for generation, use the [VISUALIZE: ...] tag.`, mode)
}
