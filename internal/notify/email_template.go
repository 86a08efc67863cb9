package notify

const emailHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>leakwatch {{.Summary.Mode}} run on {{.Channel}}</title>
  <style>
    body {
      margin: 0;
      padding: 24px;
      background-color: #f3f4f6;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      color: #111827;
      line-height: 1.5;
    }

    .container {
      max-width: 640px;
      margin: 0 auto;
      background: #ffffff;
      border-radius: 8px;
      border: 1px solid #e5e7eb;
      overflow: hidden;
    }

    .header {
      padding: 20px 24px;
      color: #ffffff;
      background: #37393b;
    }
    .header.failed  { background: #7f1d1d; }
    .header.partial { background: #92400e; }
    .header.success { background: #14532d; }

    .channel {
      font-size: 24px;
      font-weight: 700;
      letter-spacing: 0.05em;
      margin-bottom: 4px;
    }

    .badge {
      display: inline-block;
      margin-top: 8px;
      margin-right: 4px;
      padding: 4px 10px;
      font-size: 11px;
      font-weight: 600;
      border-radius: 4px;
      background: rgba(255, 255, 255, 0.2);
      text-transform: uppercase;
      letter-spacing: 0.05em;
    }

    .section {
      padding: 16px 24px;
      border-top: 1px solid #f3f4f6;
    }

    .section-title {
      font-size: 11px;
      font-weight: 700;
      color: #6b7280;
      text-transform: uppercase;
      letter-spacing: 0.1em;
      margin-bottom: 12px;
    }

    .meta-grid { display: table; width: 100%; font-size: 14px; }
    .meta-row { display: table-row; }
    .meta-label {
      display: table-cell;
      padding: 6px 16px 6px 0;
      color: #6b7280;
      font-weight: 500;
      white-space: nowrap;
      width: 140px;
    }
    .meta-value { display: table-cell; padding: 6px 0; color: #111827; }

    .error-box {
      background: #fef2f2;
      border-left: 3px solid #7f1d1d;
      padding: 12px 16px;
      font-size: 13px;
      color: #374151;
      border-radius: 0 4px 4px 0;
      word-break: break-word;
    }

    .footer {
      padding: 16px 24px;
      font-size: 12px;
      color: #9ca3af;
      text-align: center;
      background: #f9fafb;
      border-top: 1px solid #f3f4f6;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="header {{.Summary.Outcome}}">
      <div class="channel">{{.Channel}}</div>
      <div>{{.Summary.Mode}} run, {{.Duration}}</div>
      <span class="badge">{{.Summary.Outcome}}</span>
      {{range .Summary.PartialReasons}}<span class="badge">{{.}}</span>{{end}}
    </div>

    {{if .Summary.Error}}
    <div class="section">
      <div class="section-title">Error ({{.Summary.Failure}})</div>
      <div class="error-box">{{.Summary.Error}}</div>
    </div>
    {{end}}

    <div class="section">
      <div class="section-title">Messages</div>
      <div class="meta-grid">
        <div class="meta-row"><div class="meta-label">Scanned</div><div class="meta-value">{{.Summary.Scanned}}</div></div>
        <div class="meta-row"><div class="meta-label">Extracted</div><div class="meta-value">{{.Summary.Extracted}}</div></div>
        <div class="meta-row"><div class="meta-label">Accepted</div><div class="meta-value">{{.Summary.Accepted}}</div></div>
        <div class="meta-row"><div class="meta-label">Batches</div><div class="meta-value">{{.Summary.BatchesFetched}} fetched, {{.Summary.BatchesFailed}} failed</div></div>
        {{range .Rejected}}
        <div class="meta-row"><div class="meta-label">Rejected: {{.Reason}}</div><div class="meta-value">{{.Count}}</div></div>
        {{end}}
      </div>
    </div>

    <div class="section">
      <div class="section-title">Dataset</div>
      {{if .Summary.Merged}}
      <div class="meta-grid">
        <div class="meta-row"><div class="meta-label">New records</div><div class="meta-value">{{.Summary.Written}}</div></div>
        <div class="meta-row"><div class="meta-label">Evicted</div><div class="meta-value">{{.Summary.Evicted}}</div></div>
        <div class="meta-row"><div class="meta-label">Invalid</div><div class="meta-value">{{.Summary.DroppedInvalid}}</div></div>
        <div class="meta-row"><div class="meta-label">Size</div><div class="meta-value">{{.Summary.DatasetSize}}</div></div>
        {{if .Summary.BackupPath}}
        <div class="meta-row"><div class="meta-label">Backup</div><div class="meta-value">{{.Summary.BackupPath}}</div></div>
        {{end}}
      </div>
      {{else}}
      <div>Not modified.</div>
      {{end}}
    </div>

    <div class="footer">
      Run {{.Summary.ID}}, started {{.Started}}, finished {{.Finished}}
    </div>
  </div>
</body>
</html>`
