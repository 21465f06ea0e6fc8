package export

import "html/template"

// transcriptTmpl renders one page of a conversation. Messages authored by
// anyone other than the counterpart carry the "own" class: the inverted
// comparison means notifications and the owner alike render on the owner's
// side.
var transcriptTmpl = template.Must(template.New("transcript").Parse(`<html>
<head>
<meta charset="utf-8" />
<style>
p { margin: 0; padding: 0 }
.message {
    width: 100%;
    clear: both;
}

.author {
    color: blue;
    margin-left: 20px;
    font-weight: bold;
    height: auto;
    float: left;
}

.message.own .author {
    color: #2e8b57;
}

.text {
    margin-left: 90px;
    margin-right: 90px;
}

.time {
    vertical-align: top;
    margin-right: 20px;
    font-weight: bold;
    font-size: 0.8em;
    float: right;
}

.line {
    width: 80%;
    height: 1px;
    background-color: #CCCCCC;
    clear: both;
    margin: 0 auto;
}
</style>
</head>
<body>
{{- range .Entries }}
<div class="message{{if .Own}} own{{end}}">
    <div class="author">
        <p>{{.Author}}</p>
    </div>
    <div class="time">
        <p>{{.Time}}<br />{{.Date}}</p>
    </div>
    <div class="text">
        <p>{{.Body}}</p>
{{- with .Attachment }}
{{- if .Inline }}
        <p><img src="{{.Name}}" alt="{{.Name}}" /></p>
{{- else }}
        <p><a href="{{.Name}}">{{.Name}}</a></p>
{{- end }}
{{- end }}
    </div>
    <div class="line"></div>
</div>
{{- end }}
</body>
</html>
`))

type transcriptPage struct {
	Entries []transcriptEntry
}

type transcriptEntry struct {
	Author     string
	Time       string
	Date       string
	Body       string
	Own        bool
	Attachment *attachmentRef
}

type attachmentRef struct {
	Name   string
	Inline bool
}
