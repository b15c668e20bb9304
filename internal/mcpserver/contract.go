package mcpserver

// QuerySyntax describes the search query language that LLM consumers can
// pass to search_files.
const QuerySyntax = `# Folio Search Query Syntax

Queries go to the file index unchanged, after folio appends the configured
type filter and exclusion rules.

## Terms

- Plain words match file names: ` + "`" + `quantum mechanics` + "`" + `.
- ` + "`" + `ext:pdf|djvu` + "`" + ` restricts extensions. Folio adds this from settings.
- ` + "`" + `!wfn:"draft.pdf"` + "`" + ` excludes a whole file name.
- ` + "`" + `!path:"C:\old"` + "`" + ` excludes everything under a folder.
- ` + "`" + `<C:\lib\a.pdf> | <C:\lib\b.pdf>` + "`" + ` restricts the search to exact paths.
  Folio adds this when a list is active.

## Rules

1. Do not repeat the type filter or exclusions. They are added for you.
2. Quote names that contain spaces.
3. An empty query returns the whole filtered library.
4. ` + "`" + `frn:"<id>"` + "`" + ` and ` + "`" + `dc:"<timestamp>"` + "`" + ` look single records up by
   record number and creation time. Folio uses them to find renamed files.

## Lists

Lists are named, ordered collections of files. ` + "`" + `add_to_list` + "`" + ` takes a
file from the current results by its full path. Pinned items sort first in
the order they were pinned.
`
