package core

// jokes served by /joke
var jokes = []string{
	"Why do programmers prefer dark mode? Because light attracts bugs! 🐛",
	"How many programmers does it take to change a light bulb? None, that's a hardware problem! 💡",
	"Why don't programmers like nature? It has too many bugs! 🌿🐛",
	"What's a programmer's favorite hangout place? Foo Bar! 🍺",
	"Why did the programmer quit his job? He didn't get arrays! 📊",
	"How do you comfort a JavaScript bug? You console it! 🎮",
	"Why do Java developers wear glasses? Because they can't C#! 👓",
	"What do you call a programmer from Finland? Nerdic! 🇫🇮",
}

