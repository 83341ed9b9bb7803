package prompt

// Field is one questionnaire step.
type Field struct {
	// Key names the answer in session storage.
	Key string

	// Label introduces the answer inside generation prompts.
	Label string

	// Question is shown to the user when the step starts.
	Question string
}

// Messages are the fixed user-facing texts of the conversation.
type Messages struct {
	Greeting          string
	VoiceGreeting     string
	Reset             string
	Idle              string
	Analyzing         string
	Regenerating      string
	SelectionPrompt   string
	AgainPrompt       string
	InvalidSelection  string
	IgnoredOrdinals   string // fmt verb: ignored ordinals
	KeepAllButton     string
	FinalizeButton    string
	ChooseScenario    string
	NoScenarios       string
	ScenarioNotFound  string // fmt verb: ordinal
	ScenarioChosen    string // fmt verbs: ordinal, record
	AwaitingAudio     string
	AudioNotExpected  string
	Transcribing      string
	TranscriptHeader  string
	NothingRecognized string
	TooLarge          string
	TranscribeFailed  string
	LLMError          string // fmt verb: error
	ChooseAvatar      string // fmt verb: names
	ChooseVoice       string // fmt verb: names
	UnknownName       string // fmt verbs: input, names
	Rendering         string
	RenderReady       string // fmt verb: URL
	RenderFailed      string
	KeepAllWords      []string
}

// Locale is a complete language pack for prompts and conversation texts.
type Locale struct {
	Name      string
	System    string
	Fields    []Field
	Marker    string
	HookLabel string
	BodyLabel string

	// Task is the initial generation instruction; fmt verb: batch size.
	Task string

	// RegenerateTask is the regeneration instruction; fmt verb: batch size.
	RegenerateTask string

	// Format describes the record layout; fmt verbs: marker, hook label,
	// body label.
	Format string

	// Footer pins the output language.
	Footer string

	PreviousLabel   string
	SelectedLabel   string
	TranscriptLabel string
	Divider         string

	Messages Messages
}

var uzbek = Locale{
	Name:      "uz",
	System:    "Siz Instagram algoritmini chuqur tahlil qilgan, 100.000+ prosmotr olgan kontentlarni analiz qilgan kontent strateg mutaxassissiz.",
	Marker:    "🎥 Kontent",
	HookLabel: "Hook",
	BodyLabel: "Kontent",
	Fields: []Field{
		{"soha", "Soha", "1️⃣ **Sohangiz nima?** (Masalan: SMM, Psixologiya, Ingliz tili...)"},
		{"auditoriya", "Auditoriya", "2️⃣ **Auditoriyangiz kim?**\n(Masalan: Tadbirkorlar, talabalar, yosh onalar...)"},
		{"maqsad", "Maqsad", "3️⃣ **Maqsadingiz nima?**\n(Masalan: Xizmat sotish, obunachi yig'ish, ekspertlikni oshirish...)"},
		{"muammolar", "Hal qilayotgan muammolar", "4️⃣ **Siz hozirda sohangizda qanday muammolarni hal qilayapsiz?**"},
		{"tasir", "Ta'siri", "5️⃣ **Sohangiz odamlar hayotiga qanday ta'sir o'tkazayapti?**\n(Hayotini qaysi tomonlarini yaxshilanishiga sabab bo'lmoqda)"},
		{"tajriba", "Shaxsiy tajriba/Keyslar", "6️⃣ **Shaxsiy biror tajribangizni gapirib bersangiz sohangiz bo'yicha?**\n(Umumiy sohangiz bo'yicha keyslaringiz ulardan olgan xulosangiz)"},
		{"mavzular", "Istalgan mavzular", "7️⃣ **Siz qanday mavzularda kontent chiqarishni hoxlayapsiz?**\n(Imkoni bo'lsa batafsil yozing)"},
		{"unique", "O'ziga xoslik (USP)", "8️⃣ **Sizni boshqalardan nima ajratib turadi?**\n(Yani sohangizdagi kuchli tomoningiz)"},
	},
	Task: "🎯 TOPSHIRIQ:\n" +
		"Yuqoridagi barcha ma'lumotlardan kelib chiqib, Instagram Reels uchun %d ta viral mavzu va HeyGen avatari gapirishi uchun tayyor matn (skript) yozing.\n\n" +
		"Talablar:\n" +
		"- Har bir ssenariy turlicha bo'lsin (turli formatlar va yondashuvlar).\n" +
		"- Foydalanuvchining shaxsiy tajribasi va o'ziga xosligini inobatga oling.",
	RegenerateTask: "🎯 TOPSHIRIQ:\n" +
		"1. Foydalanuvchi tanlagan raqamdagi mavzularni (Hook va Kontent) XUDDI O'ZIDEK saqlab qoling.\n" +
		"2. Tanlanmagan mavzular o'rniga YANGI, viral va qiziqarli g'oyalar yozing.\n" +
		"3. Jami yana %d ta kontent bo'lishi kerak.",
	Format: "Javobingiz qat'iy quyidagi formatda bo'lsin (har bir mavzu uchun):\n\n" +
		"%s {raqam}\n" +
		"<b>%s:</b> [Videoni boshlash uchun 3 soniyalik kuchli ilmoq/gap]\n" +
		"<b>%s:</b> [Video nima haqida bo'lishi, vizual tavsif va g'oya]",
	Footer:          "Barcha javoblar O'zbek tilida bo'lsin.",
	PreviousLabel:   "OLDINGI GENERATSIYA:",
	SelectedLabel:   "FOYDALANUVCHI TANLAGAN RAQAMLAR:",
	TranscriptLabel: "Foydalanuvchi ovozli xabari (transkript):",
	Divider:         "--------------------------------------------------",
	Messages: Messages{
		Greeting:          "👋 Assalomu alaykum! Men sizning shaxsiy kontent strategingizman.\n\nKeling, siz uchun millionlab ko'rishlar olib keladigan kontent rejasi tuzamiz.",
		VoiceGreeting:     "🎙️ Sohangiz, auditoriyangiz va maqsadingiz haqida ovozli xabar yuboring. Men uni matnga aylantirib, kontent rejasini tuzaman.",
		Reset:             "🔄 Sessiya tozalandi. Boshlash uchun /start ni bosing.",
		Idle:              "Iltimos, /start buyrug'ini bosing va so'rovnomani to'ldiring.",
		Analyzing:         "⏳ **Tahlil qilyapman...**\nInstagram algoritmlarini o'rganib, eng trenddagi mavzularni tayyorlayapman.",
		Regenerating:      "⏳ **Qayta ishlayapman...**\nTanlangan mavzularni saqlab, qolganlarini yangilayapman.",
		SelectionPrompt:   "♻️ **Qaysi mavzular sizga yoqdi?**\n\nYoqqan mavzular raqamini yozing (masalan: 1, 5, 10).\nMen ularni saqlab qolaman va qolganlarini yangisiga almashtirib beraman.\n\nYoki yangi soha tanlash uchun /start ni bosing.",
		AgainPrompt:       "♻️ **Yana o'zgartiramizmi?**\nYoqqanlarini raqamini yozing (masalan: 1, 2, 3) yoki yangi soha uchun /start ni bosing.",
		InvalidSelection:  "⚠️ Iltimos, faqat raqamlarni yozing (masalan: 1, 5, 10 yoki 3-5).",
		IgnoredOrdinals:   "ℹ️ Bu raqamlar ro'yxatda yo'q, e'tiborga olinmadi: %s",
		KeepAllButton:     "✅ Hammasini saqlash",
		FinalizeButton:    "🎬 Yakunlash",
		ChooseScenario:    "🎬 Qaysi ssenariyni tanlaysiz? Raqamini yozing.",
		NoScenarios:       "⚠️ Oxirgi javobda ssenariylar topilmadi. Raqamlarni yozib qayta generatsiya qiling.",
		ScenarioNotFound:  "⚠️ %d-raqamli ssenariy topilmadi. Boshqa raqam yozing.",
		ScenarioChosen:    "✅ Tanlandi: %d\n\n%s\n\n🎙️ Endi shu ssenariy bo'yicha ovozli xabar yuboring.",
		AwaitingAudio:     "🎙️ Iltimos, ovozli xabar yuboring.",
		AudioNotExpected:  "ℹ️ Hozir ovozli xabar kutilmayapti. /start yoki /voice ni bosing.",
		Transcribing:      "⏳ Ovozli xabarni matnga aylantiryapman...",
		TranscriptHeader:  "📝 **Transkript:**",
		NothingRecognized: "⚠️ Ovozli xabarda nutq aniqlanmadi. Iltimos, qaytadan yuboring.",
		TooLarge:          "⚠️ Fayl juda katta. Iltimos, qisqaroq ovozli xabar yuboring.",
		TranscribeFailed:  "❌ Audio faylni qayta ishlashda xatolik yuz berdi.",
		LLMError:          "❌ ChatGPT bilan bog'lanishda xatolik: %v",
		ChooseAvatar:      "👤 Avatarni tanlang: %s",
		ChooseVoice:       "🎙️ Ovozni tanlang: %s",
		UnknownName:       "⚠️ %q topilmadi. Mavjudlari: %s",
		Rendering:         "⏳ Video yaratilmoqda...\nBu bir necha daqiqa davom etishi mumkin.",
		RenderReady:       "🎉 Video tayyor!\n\n📥 Yuklab olish: %s",
		RenderFailed:      "❌ Video yaratishda xatolik yuz berdi.",
		KeepAllWords:      []string{"hammasi", "barchasi", "hammasini"},
	},
}

var english = Locale{
	Name:      "en",
	System:    "You are a content strategist who has studied the Instagram algorithm in depth and analysed content with 100,000+ views.",
	Marker:    "🎥 Content",
	HookLabel: "Hook",
	BodyLabel: "Content",
	Fields: []Field{
		{"soha", "Field", "1️⃣ **What is your field?** (e.g. SMM, psychology, English teaching...)"},
		{"auditoriya", "Audience", "2️⃣ **Who is your audience?**\n(e.g. entrepreneurs, students, young mothers...)"},
		{"maqsad", "Goal", "3️⃣ **What is your goal?**\n(e.g. selling a service, growing followers, building expertise...)"},
		{"muammolar", "Problems solved", "4️⃣ **Which problems do you solve in your field today?**"},
		{"tasir", "Impact", "5️⃣ **How does your field change people's lives?**\n(Which parts of their life get better)"},
		{"tajriba", "Personal experience/Cases", "6️⃣ **Could you share a personal experience from your field?**\n(Your cases and what you learned from them)"},
		{"mavzular", "Desired topics", "7️⃣ **Which topics do you want to publish content about?**\n(As detailed as possible)"},
		{"unique", "Uniqueness (USP)", "8️⃣ **What sets you apart from others?**\n(Your strongest side in your field)"},
	},
	Task: "🎯 TASK:\n" +
		"Based on all of the information above, write %d viral Instagram Reels topics, each with a ready script for a HeyGen avatar to speak.\n\n" +
		"Requirements:\n" +
		"- Every scenario must differ (different formats and approaches).\n" +
		"- Take the user's personal experience and uniqueness into account.",
	RegenerateTask: "🎯 TASK:\n" +
		"1. Keep the topics with the numbers the user selected (Hook and Content) EXACTLY AS THEY ARE.\n" +
		"2. Replace every topic that was not selected with a NEW, viral and engaging idea.\n" +
		"3. There must again be %d items in total.",
	Format: "Answer strictly in the following format (for every topic):\n\n" +
		"%s {number}\n" +
		"<b>%s:</b> [a strong 3-second hook that opens the video]\n" +
		"<b>%s:</b> [what the video is about, visual description and idea]",
	Footer:          "Write every answer in English.",
	PreviousLabel:   "PREVIOUS GENERATION:",
	SelectedLabel:   "NUMBERS SELECTED BY THE USER:",
	TranscriptLabel: "User voice message (transcript):",
	Divider:         "--------------------------------------------------",
	Messages: Messages{
		Greeting:          "👋 Hello! I'm your personal content strategist.\n\nLet's build a content plan that brings you millions of views.",
		VoiceGreeting:     "🎙️ Send a voice message about your field, audience and goals. I'll transcribe it and build your content plan.",
		Reset:             "🔄 Session cleared. Use /start to begin.",
		Idle:              "Please use /start and fill in the questionnaire.",
		Analyzing:         "⏳ **Analysing...**\nStudying the Instagram algorithm and preparing the trendiest topics.",
		Regenerating:      "⏳ **Reworking...**\nKeeping your selected topics and refreshing the rest.",
		SelectionPrompt:   "♻️ **Which topics did you like?**\n\nType their numbers (e.g. 1, 5, 10).\nI'll keep them and replace the rest with new ones.\n\nOr use /start to pick a new field.",
		AgainPrompt:       "♻️ **Change again?**\nType the numbers you like (e.g. 1, 2, 3) or use /start for a new field.",
		InvalidSelection:  "⚠️ Please type numbers only (e.g. 1, 5, 10 or 3-5).",
		IgnoredOrdinals:   "ℹ️ These numbers are not in the list and were ignored: %s",
		KeepAllButton:     "✅ Keep all",
		FinalizeButton:    "🎬 Finalize",
		ChooseScenario:    "🎬 Which scenario do you pick? Type its number.",
		NoScenarios:       "⚠️ No scenarios found in the last answer. Type numbers to regenerate.",
		ScenarioNotFound:  "⚠️ Scenario %d was not found. Type another number.",
		ScenarioChosen:    "✅ Selected: %d\n\n%s\n\n🎙️ Now send a voice message for this scenario.",
		AwaitingAudio:     "🎙️ Please send a voice message.",
		AudioNotExpected:  "ℹ️ No voice message expected right now. Use /start or /voice.",
		Transcribing:      "⏳ Transcribing your voice message...",
		TranscriptHeader:  "📝 **Transcript:**",
		NothingRecognized: "⚠️ No speech was recognised in the recording. Please send it again.",
		TooLarge:          "⚠️ The file is too large. Please send a shorter recording.",
		TranscribeFailed:  "❌ Processing the audio file failed.",
		LLMError:          "❌ Could not reach the language model: %v",
		ChooseAvatar:      "👤 Choose an avatar: %s",
		ChooseVoice:       "🎙️ Choose a voice: %s",
		UnknownName:       "⚠️ %q was not found. Available: %s",
		Rendering:         "⏳ Creating the video...\nThis may take a few minutes.",
		RenderReady:       "🎉 Video ready!\n\n📥 Download: %s",
		RenderFailed:      "❌ Creating the video failed.",
		KeepAllWords:      []string{"all", "keep all"},
	},
}

var locales = map[string]Locale{
	uzbek.Name:   uzbek,
	english.Name: english,
}
