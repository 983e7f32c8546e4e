package agents

// Prompt bodies. The JSON examples inside them are literal text; only the
// declared slots of each Template are substituted.

const fence = "```"

const (
	specialistSystem  = "You are a specialized agent for a restaurant. Return only valid JSON without markdown formatting or code blocks."
	coordinatorSystem = "You are a coordinator agent for a restaurant. Return only valid JSON without markdown formatting or code blocks."
)

const returnOnlyJSON = "\nReturn only the JSON with no additional text.\n"

const subject = `
Diner Information:
{diner_info}

Upcoming Reservation:
{reservation_info}
`

const dietaryPrompt = `
You are a Dietary Analysis Agent for a fine dining restaurant. Analyze the diner's information and upcoming reservation to identify:

1. Allergies and dietary restrictions (critical safety issues)
2. Dietary preferences (important for satisfaction)
3. Special preparation instructions
` + subject + `
Provide your analysis in the following JSON format:
` + fence + `
{
    "allergies": [
        {"item": "allergen name", "severity": "critical/preference", "source": "where this was mentioned"}
    ],
    "dietary_restrictions": [
        {"restriction": "type of restriction", "notes": "details", "source": "where this was mentioned"}
    ],
    "preparation_instructions": [
        {"dish": "dish name", "instruction": "specific preparation note"}
    ]
}
` + fence + "\n" + returnOnlyJSON

const guestExperiencePrompt = `
You are a Guest Experience Agent for a fine dining restaurant. Analyze the diner's past reviews and information to identify:

1. What impressed or disappointed them in the past
2. Service style preferences (attentive vs. hands-off)
3. Conversation topics that resonated with them
` + subject + `
Provide your analysis in the following JSON format:
` + fence + `
{
    "past_impressions": [
        {"type": "positive/negative", "aspect": "what impressed/disappointed", "source": "where this was mentioned"}
    ],
    "service_preferences": {
        "style": "attentive/hands-off/balanced",
        "evidence": "reasoning behind this assessment"
    },
    "conversation_topics": [
        {"topic": "topic name", "context": "where/how this was mentioned"}
    ]
}
` + fence + "\n" + returnOnlyJSON

const specialRequestsPrompt = `
You are a Special Requests Agent for a fine dining restaurant. Analyze the diner's emails and reservation information to identify:

1. Explicit requests made by the guest
2. Modifications to standard service
3. Time-sensitive needs
` + subject + `
Provide your analysis in the following JSON format:
` + fence + `
{
    "explicit_requests": [
        {"request": "specific request", "priority": "high/medium/low", "source": "where this was mentioned"}
    ],
    "service_modifications": [
        {"modification": "specific modification", "notes": "details"}
    ],
    "time_sensitive": [
        {"need": "specific need", "timing": "when it's needed"}
    ],
    "special_occasions": [
        {"occasion": "type of occasion", "details": "specific details"}
    ]
}
` + fence + "\n" + returnOnlyJSON

const personalizationPrompt = `
You are a Personalization Agent for a fine dining restaurant. Analyze the diner's information to identify:

1. Opportunities to personalize the experience
2. Potential upsell opportunities based on preferences
3. Recognition moments to acknowledge the guest
` + subject + `
Provide your analysis in the following JSON format:
` + fence + `
{
    "personalization_opportunities": [
        {"opportunity": "specific opportunity", "implementation": "how to implement", "impact": "high/medium/low"}
    ],
    "upsell_opportunities": [
        {"item": "item to suggest", "rationale": "why this would appeal to the guest"}
    ],
    "recognition_moments": [
        {"moment": "when to recognize", "approach": "how to recognize"}
    ]
}
` + fence + "\n" + returnOnlyJSON

const coordinatorPrompt = `
You are the Coordinator Agent for a fine dining restaurant's morning huddle system. Your job is to combine and prioritize insights from specialized agents into a cohesive briefing.
` + subject + `
Specialized Agent Insights:

Dietary Analysis:
{dietary_analysis}

Guest Experience:
{guest_experience}

Special Requests:
{special_requests}

Personalization:
{personalization}

Create a consolidated briefing in the following JSON format:
` + fence + `
{
    "priority_alerts": [
        {"alert": "critical information", "category": "dietary/experience/request/personalization", "for": "kitchen/service/management"}
    ],
    "guest_profile": {
        "dining_style": "description of how they like to dine",
        "preferences": ["key preference 1", "key preference 2"],
        "avoid": ["what to avoid 1", "what to avoid 2"]
    },
    "service_recommendations": [
        {"recommendation": "specific action", "timing": "when in service", "owner": "who should do this"}
    ],
    "kitchen_notes": [
        {"note": "specific preparation detail", "dish": "affected dish"}
    ]
}
` + fence + `

Prioritize information that is:
1. Safety-critical (allergies, accessibility)
2. Experience-enhancing (celebrations, personalization)
3. Operationally important (timing, modifications)
` + returnOnlyJSON
