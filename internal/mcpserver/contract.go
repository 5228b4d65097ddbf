package mcpserver

// LayoutContract describes the spreadsheet layout the extractor expects, so
// that LLM consumers can explain failures or help a user fix a source sheet.
const LayoutContract = `# Sowilo Source Layout

Sowilo reads a Google Sheets document published with "File → Share →
Publish to the web" as a web page (the URL usually ends in /pubhtml).

## Sheets

- Every tab becomes one sheet; its name is the tab label.
- A tab whose label cannot be read is named "Sheet N" and is dropped when it
  has no records.

## Columns

Columns are read by position, not by header text:

| Column | Field       | Required |
|--------|-------------|----------|
| A      | Folder      | yes      |
| B      | Name        | yes      |
| C      | Created     | no       |
| D      | Size        | no       |
| E      | Description | no       |

- The first row of each tab is a header and is never read as data.
- Rows with fewer than five cells are skipped.
- Rows whose folder or name is empty are skipped, as are header repeats
  ("Name", "Folder Name") and summary rows starting with "All files".

## Identity and changes

- A record is identified by its folder (column A) across all tabs.
- Changes to Created, Name or Size are reported as modifications; a new
  folder is an addition and a missing one a removal.

## Totals

- Created values such as "12" or "12 GB" are summed as gigabytes; totals of
  1000 GB or more are shown in TB.
`
