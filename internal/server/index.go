package server

import "github.com/gofiber/fiber/v3"

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>temp-link</title>
<style>
  body { font-family: sans-serif; max-width: 640px; margin: 4rem auto; padding: 0 1rem; }
  input[type=url] { width: 100%; padding: .5rem; box-sizing: border-box; }
  button { margin-top: .75rem; padding: .5rem 1.5rem; }
  #result { margin-top: 1.5rem; word-break: break-all; }
  .error { color: #b00020; }
</style>
</head>
<body>
<h1>temp-link</h1>
<p>Paste a file URL to create a temporary download link. Links expire after a
period of inactivity.</p>
<form id="generate-form">
  <input type="url" id="file-url" placeholder="https://example.com/file.zip" required>
  <button type="submit">Generate link</button>
</form>
<div id="result"></div>
<script>
document.getElementById('generate-form').addEventListener('submit', async (ev) => {
  ev.preventDefault();
  const result = document.getElementById('result');
  result.textContent = 'Fetching…';
  result.className = '';
  try {
    const resp = await fetch('/generate', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({file_url: document.getElementById('file-url').value})
    });
    const data = await resp.json();
    if (!resp.ok) {
      result.textContent = data.message || data.error || 'request failed';
      result.className = 'error';
      return;
    }
    result.innerHTML = '<a href="' + data.download_url + '">' + data.download_url + '</a>';
  } catch (err) {
    result.textContent = String(err);
    result.className = 'error';
  }
});
</script>
</body>
</html>
`

// serveIndex 返回内嵌的单页表单，便于手工生成下载链接。
func serveIndex(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(indexHTML)
}
