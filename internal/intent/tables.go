package intent

import (
	"regexp"

	"companion/internal/domain"
)

// Keyword tables are written against Normalize output: lowercase, no
// diacritics. EN, FR and ES forms share one canonical English value.

var objectTable = compile(map[string][]string{
	"lollipop":     {"lollipop*", "sucette*", "piruleta*", "chupa chups", "chupachups"},
	"book":         {"book", "books", "livre", "livres", "libro", "libros", "novel"},
	"sunglasses":   {"sunglasses", "lunettes de soleil", "gafas de sol", "lentes de sol"},
	"glasses":      {"glasses", "eyeglasses", "lunettes", "gafas", "lentes"},
	"phone":        {"phone", "phones", "smartphone*", "iphone", "telephone*", "telefono*", "movil", "celular"},
	"coffee":       {"coffee", "cafe", "latte", "cappuccino", "espresso"},
	"rose":         {"rose", "roses", "rosa", "rosas"},
	"flowers":      {"flower*", "fleur*", "flor", "flores", "bouquet", "ramo"},
	"wine glass":   {"verre de vin", "glass of wine", "wine glass", "copa de vino"},
	"wine":         {"wine", "vin", "vino"},
	"umbrella":     {"umbrella", "parapluie", "paraguas"},
	"headphones":   {"headphone*", "earphone*", "earbud*", "ecouteur*", "casque", "auriculares", "audifonos"},
	"necklace":     {"necklace*", "collier*", "collar"},
	"laptop":       {"laptop*", "ordinateur portable", "portatil"},
	"computer":     {"computer*", "ordinateur*", "ordenador*"},
	"candles":      {"candle*", "bougie*", "vela", "velas"},
	"hat":          {"hat", "hats", "chapeau*", "sombrero", "casquette", "cap"},
	"pen":          {"pen", "pens", "stylo*", "boligrafo", "pluma"},
	"notebook":     {"notebook*", "carnet*", "cahier*", "cuaderno*"},
	"camera":       {"camera", "appareil photo", "camara"},
	"bag":          {"bag", "handbag", "purse", "sac", "bolso"},
	"lipstick":     {"lipstick", "rouge a levres", "pintalabios", "labial"},
	"mirror":       {"mirror", "miroir", "espejo"},
	"brush":        {"brush", "brosse", "pinceau", "cepillo"},
	"perfume":      {"perfume", "parfum"},
	"guitar":       {"guitar*", "guitare*", "guitarra*"},
	"microphone":   {"microphone", "micro", "microfono", "mic"},
	"desk":         {"desk", "escritorio"},
	"blackboard":   {"blackboard", "chalkboard", "tableau noir", "pizarra"},
	"teddy bear":   {"teddy bear", "teddy", "peluche", "ours en peluche", "osito de peluche"},
	"ice cream":    {"ice cream", "glace", "helado"},
	"banana":       {"banana", "banane", "platano"},
	"shower":       {"shower", "douche", "ducha"},
	"cocktail":     {"cocktail*", "coctel"},
	"towel":        {"towel", "serviette", "toalla"},
	"cat":          {"cat", "gato", "kitten", "chaton"},
	"dog":          {"dog", "chien", "perro", "puppy", "chiot"},
	"pillow":       {"pillow*", "oreiller*", "coussin*", "almohada*"},
	"strawberry":   {"strawberr*", "fraise*", "fresa*"},
	"water bottle": {"water bottle", "bouteille d eau", "botella de agua"},
})

// wearables read as "wearing" when no action is given.
var wearables = map[string]bool{
	"glasses": true, "sunglasses": true, "headphones": true, "necklace": true, "hat": true,
}

var actionTable = compile(map[string][]string{
	"sucking":         {"sucking", "suck", "sucks", "sucer", "suce", "suces", "sucant", "chupando", "chupar"},
	"applying makeup": {"makeup", "make-up", "maquillage", "maquill*", "maquillaje", "maquillando*"},
	"taking selfie":   {"selfie*"},
	"reading":         {"reading", "read", "reads", "lire", "lisant", "leer", "leyendo"},
	"writing":         {"writing", "write", "writes", "ecrire", "ecrivant", "ecris", "escribir", "escribiendo"},
	"working out":     {"working out", "work out", "workout", "exercising", "faire du sport", "entrenando", "entrenar", "haciendo ejercicio"},
	"working":         {"working", "work", "travaille*", "travaillant", "trabajando", "trabajar"},
	"dancing":         {"danc*", "danse", "danser", "dansant", "bailando", "bailar", "baile"},
	"stretching":      {"stretch*", "etire*", "etirant", "estirando*", "estirar*"},
	"blowing kiss":    {"blow*+kiss*", "bisou*", "beso*"},
	"winking":         {"wink*", "clin d oeil", "guinando", "guino", "guinar"},
	"laughing":        {"laugh*", "rire", "riant", "rigole*", "riendo", "reir"},
	"looking back":    {"looking back", "look back", "over her shoulder", "over your shoulder", "en arriere", "hacia atras", "mirando atras"},
	"touching hair":   {"touch*+hair", "touche*+cheveux", "tocando*+pelo", "tocando*+cabello"},
	"biting lip":      {"bit*+lip*", "mord*+levre*", "mord*+labio*"},
	"lying down":      {"lying", "lie down", "laying", "allonge*", "couchee", "couche", "acostad*", "tumbad*", "au lit"},
	"cooking":         {"cook*", "cuisine", "cuisiner", "cuisinant", "cocinando", "cocinar"},
	"showering":       {"showering", "shower", "douche", "ducha", "duchando*"},
	"playing music":   {"play*+guitar*", "jou*+guitare*", "music*", "musique", "musical*", "musica*"},
	"smiling":         {"smil*", "souri*", "sonri*"},
	"sitting":         {"sitting", "sit", "sits", "seated", "assise", "assis", "sentada", "sentado"},
	"standing":        {"standing", "stand", "debout", "de pie", "parada"},
	"posing":          {"posing", "pose", "poses", "posant", "posando", "posar"},
	"wearing":         {"wearing", "wear", "portant", "porte", "portes", "porter", "llevando", "vistiendo"},
	"holding":         {"holding", "hold", "holds", "tenant", "tiens", "tient", "sosteniendo", "sujetando"},
	"swimming":        {"swimming", "swim", "nager", "nageant", "nadando", "nadar"},
	"sleeping":        {"sleeping", "asleep", "dormir", "dormant", "durmiendo"},
	"eating":          {"eating", "eat", "manger", "mangeant", "comiendo", "comer"},
	"drinking":        {"drinking", "drink", "boire", "buvant", "bebiendo", "beber"},
})

var locationTable = compile(map[string][]string{
	"bedroom":      {"bedroom", "chambre", "in bed", "au lit", "bed", "lit", "dormitorio", "habitacion", "cama"},
	"bathroom":     {"bathroom", "salle de bain*", "salle d eau", "bano", "douche", "shower", "ducha"},
	"kitchen":      {"kitchen", "cuisine", "cocina"},
	"beach":        {"beach", "plage", "playa", "seaside"},
	"gym":          {"gym", "gymnase", "salle de sport", "gimnasio", "fitness"},
	"office":       {"office", "bureau", "oficina"},
	"park":         {"park", "parc", "parque"},
	"cafe":         {"coffee shop", "cafeteria", "coffee house", "salon de the", "cafe-bar"},
	"car interior": {"car", "voiture", "coche", "auto"},
	"classroom":    {"classroom", "classe", "salle de classe", "aula"},
	"living room":  {"living room", "salon", "couch", "sofa", "canape"},
	"outdoor":      {"outdoor*", "outside", "dehors", "en plein air", "exterior", "afuera", "summer", "ete", "verano"},
	"pool":         {"pool", "swimming pool", "piscine", "piscina"},
	"street":       {"street", "rue", "calle", "city", "ville", "ciudad"},
	"garden":       {"garden", "jardin"},
	"forest":       {"forest", "woods", "foret", "bosque"},
	"hotel room":   {"hotel", "hotel room", "chambre d hotel"},
	"balcony":      {"balcony", "balcon"},
})

var nsfwTables = map[domain.NSFWLevel]table{
	domain.NSFWNude: compile(map[string][]string{"nude": {
		"nude", "nudes", "naked", "nue", "nues", "toute nue", "a poil", "desnuda", "desnudo",
		"sin ropa", "no clothes", "sans vetements", "nothing on", "fully nude",
	}}),
	domain.NSFWTopless: compile(map[string][]string{"topless": {
		"topless", "seins nus", "bare breasts", "bare chest", "no top", "sans haut",
		"pechos desnudos", "sin sujetador", "sin camiseta", "no bra", "sans soutien-gorge",
		"shower", "douche", "ducha",
	}}),
	domain.NSFWLingerie: compile(map[string][]string{"suggestive": {
		"lingerie", "bikini", "underwear", "bra", "panties", "thong", "sous-vetements", "sous vetements",
		"culotte", "string", "soutien-gorge", "ropa interior", "lenceria", "tanga",
		"sexy", "sensual", "sensuel*", "seductive", "seduisante", "flirty", "hot", "chaude",
		"caliente", "provocative", "provocante", "coquine", "tight", "moulant*", "ajustad*",
		"wet", "mouille*", "mojad*", "swimsuit", "maillot de bain", "banador",
	}}),
}

// clothingTable feeds ClothingHint. Clothing words never become objects.
var clothingTable = compile(map[string][]string{
	"lingerie": {"lingerie", "lenceria", "sous-vetements", "sous vetements", "underwear", "ropa interior"},
	"bikini":   {"bikini", "swimsuit", "maillot de bain", "banador"},
	"pajamas":  {"pajama*", "pyjama*", "pijama*"},
	"dress":    {"dress", "robe", "vestido"},
	"shirt":    {"shirt", "chemise", "camisa"},
	"t-shirt":  {"t-shirt", "tee-shirt", "tshirt", "camiseta"},
	"sweater":  {"sweater", "jersey", "sueter"},
	"hoodie":   {"hoodie", "sweat"},
	"jeans":    {"jeans", "jean", "vaqueros"},
	"slip":     {"slip", "nuisette", "camison"},
	"bralette": {"bralette", "bra", "soutien-gorge", "sujetador"},
	"panties":  {"panties", "culotte", "bragas", "thong", "string", "tanga"},
	"sundress": {"sundress", "robe d ete"},
	"casual":   {"casual", "decontracte*"},
})

var moodTable = compile(map[string][]string{
	string(domain.MoodSeductive): {"sexy", "seduct*", "seduisant*", "sensual*", "sensuel*", "hot", "chaude", "caliente", "provocative", "provocante", "sultry"},
	string(domain.MoodPlayful):   {"playful", "fun", "funny", "flirty", "joueu*", "coquin*", "juguet*", "wink*", "clin d oeil"},
	string(domain.MoodShy):       {"shy", "timide", "timid*", "shyly"},
	string(domain.MoodConfident): {"confident", "bold", "confiant*", "segura", "seguro"},
	string(domain.MoodRomantic):  {"romantic", "romantique", "romantica", "romantico", "amour", "amor"},
})

// outfitTable classifies an explicit outfit string. Only these classes
// override text inference.
var outfitTable = map[domain.NSFWLevel]table{
	domain.NSFWNude:     compile(map[string][]string{"nude": {"nude", "naked", "fully nude", "nue", "desnuda", "wearing nothing", "nothing on"}}),
	domain.NSFWTopless:  compile(map[string][]string{"topless": {"topless", "bare chest", "bare breasts", "no top", "seins nus"}}),
	domain.NSFWLingerie: compile(map[string][]string{"lingerie": {"lingerie", "underwear", "bikini", "bra", "panties", "thong", "lenceria", "sous-vetements"}}),
}

// personalityTable maps personality words to the level-1 default.
var personalityTable = compile(map[string][]string{
	"suggestive": {"seduct*", "provocative", "provocante", "sensual*", "sensuel*", "flirt*", "seduisant*"},
})

// minorRe flags minor-coded requests on normalized text.
var minorRe = regexp.MustCompile(`\b(teen|teens|teenage|teenager|teenagers|preteen|pre-teen|schoolgirl|schoolgirls|schoolboy|child|children|kid|kids|underage|minors|loli|lolita|shota|jailbait|high school|middle school|ado|ados|adolescente|adolescentes|enfant|enfants|mineure|mineur|collegienne|lyceenne|menor de edad|colegiala|nena|petite fille)\b|\b([1-9]|1[0-7])[ -]?(y\.?o|y/o|yrs|yrs?[ -]old|years?[ -]olds?|ans|anos)\b`)
