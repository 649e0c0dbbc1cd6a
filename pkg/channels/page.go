package channels

import (
	"encoding/json"
	"strings"

	"github.com/urmatovnaa/bankchat/pkg/format"
	"github.com/urmatovnaa/bankchat/pkg/i18n"
)

// renderPage fills the page shell with the locale's labels. Strings used from
// script are embedded as JSON.
func renderPage(loc *i18n.Locale) string {
	js := func(s string) string {
		b, _ := json.Marshal(s)
		return string(b)
	}
	return strings.NewReplacer(
		"{{lang}}", format.Escape(loc.Code),
		"{{title}}", format.Escape(loc.SenderBot),
		"{{placeholder}}", format.Escape(loc.InputPlaceholder),
		"{{login_prompt}}", format.Escape(loc.LoginPrompt),
		"{{analytics_title}}", format.Escape(loc.AnalyticsTitle),
		"{{clear_confirm_js}}", js(loc.ClearConfirm),
	).Replace(webChatHTML)
}

const webChatHTML = `<!DOCTYPE html>
<html lang="{{lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{title}}</title>
<style>
:root{
  --bg-primary:#0f1117;--bg-secondary:#161822;--bg-tertiary:#1c1f2e;
  --bg-input:#12141d;--border:#252836;--border-focus:#2f80ed;
  --accent:#2f80ed;--accent-hover:#2567c4;--accent-glow:rgba(47,128,237,.15);
  --text-primary:#e8e6f0;--text-secondary:#8b8a97;--text-muted:#5c5b66;
  --user-bg:linear-gradient(135deg,#2f80ed 0%,#56ccf2 100%);
  --success:#34d399;--error:#f87171;--star:#fbbf24;
  --radius:12px;--radius-lg:16px;
}
*{box-sizing:border-box;margin:0;padding:0}
html,body{height:100%}
body{
  font-family:system-ui,-apple-system,sans-serif;
  background:var(--bg-primary);color:var(--text-primary);
  display:flex;flex-direction:column;overflow:hidden;
}
#header{
  padding:16px 24px;background:var(--bg-secondary);border-bottom:1px solid var(--border);
  display:flex;align-items:center;gap:12px;flex-shrink:0;
}
#header h1{font-size:16px;font-weight:600}
#userName{font-size:12px;color:var(--text-secondary)}
.header-right{margin-left:auto;display:flex;gap:8px}
.header-right button{
  background:none;border:1px solid var(--border);border-radius:8px;
  color:var(--text-secondary);padding:6px 12px;font-size:12px;cursor:pointer;
}
.header-right button:hover{border-color:var(--text-muted);color:var(--text-primary)}
#chatMessages{flex:1;overflow-y:auto;padding:24px;display:flex;flex-direction:column;gap:16px}
.message{display:flex}
.user-message{justify-content:flex-end}
.message-content{
  max-width:72%;padding:12px 16px;border-radius:var(--radius-lg);line-height:1.6;font-size:14px;
  background:var(--bg-tertiary);border:1px solid var(--border);
}
.user-message .message-content{background:var(--user-bg);border:none;color:#fff}
.message-header{display:flex;gap:8px;align-items:baseline;margin-bottom:4px;font-size:12px}
.timestamp{color:var(--text-muted)}
.user-message .timestamp{color:rgba(255,255,255,.6)}
.category-badge{margin-left:auto;padding:1px 8px;border-radius:10px;background:var(--accent-glow);color:var(--accent)}
.message-text p{margin:4px 0}.message-text ul,.message-text ol{margin:4px 0 4px 20px}
.feedback-controls{display:flex;gap:6px;align-items:center;margin-top:8px;font-size:12px;color:var(--text-muted)}
.feedback-controls button{background:none;border:none;cursor:pointer;color:var(--text-muted);font-size:14px}
.feedback-controls .star.active{color:var(--star)}
.feedback-controls .active{color:var(--text-primary);font-weight:600}
.typing-indicator{display:flex;gap:8px;align-items:center;color:var(--text-muted);font-size:13px}
.typing-dots{display:flex;gap:4px}
.typing-dot{width:6px;height:6px;background:var(--accent);border-radius:50%;animation:bounce .6s infinite alternate}
.typing-dot:nth-child(2){animation-delay:.15s}.typing-dot:nth-child(3){animation-delay:.3s}
.notice{align-self:center;padding:8px 14px;border-radius:8px;font-size:13px}
.notice-error{background:rgba(248,113,113,.08);color:var(--error);border:1px solid rgba(248,113,113,.2)}
.notice-success{background:rgba(52,211,153,.08);color:var(--success);border:1px solid rgba(52,211,153,.2)}
.notice-info{background:var(--bg-tertiary);color:var(--text-secondary)}
#auth{display:none;padding:16px 24px;background:var(--bg-secondary);border-top:1px solid var(--border);gap:8px;flex-wrap:wrap;align-items:center}
#auth input{padding:8px 12px;background:var(--bg-input);border:1px solid var(--border);border-radius:8px;color:var(--text-primary)}
#auth button,#send{padding:8px 14px;background:var(--accent);color:#fff;border:none;border-radius:8px;cursor:pointer}
#input-area{padding:16px 24px 20px;background:var(--bg-secondary);border-top:1px solid var(--border);display:flex;gap:10px}
#messageInput{
  flex:1;padding:10px 14px;border:1px solid var(--border);border-radius:var(--radius);
  background:var(--bg-input);color:var(--text-primary);font-size:14px;outline:none;
}
#messageInput:focus{border-color:var(--border-focus);box-shadow:0 0 0 3px var(--accent-glow)}
#send:disabled,#messageInput:disabled{opacity:.4;cursor:not-allowed}
#analyticsModal{display:none;position:fixed;inset:0;background:rgba(0,0,0,.6);align-items:center;justify-content:center}
#analyticsModal .modal-body{background:var(--bg-secondary);border:1px solid var(--border);border-radius:var(--radius-lg);padding:24px;min-width:320px}
.stats-grid{display:flex;gap:12px;margin:12px 0}
.stat-card{flex:1;padding:12px;background:var(--bg-tertiary);border-radius:8px;text-align:center}
.stat-value{font-size:20px;font-weight:600}.stat-label{font-size:12px;color:var(--text-muted)}
.category-table{width:100%;border-collapse:collapse;font-size:13px}
.category-table th,.category-table td{padding:6px;border-bottom:1px solid var(--border);text-align:left}
@keyframes bounce{from{transform:translateY(0)}to{transform:translateY(-4px)}}
</style>
</head>
<body>
<div id="header">
  <h1>{{title}}</h1>
  <span id="userName"></span>
  <div class="header-right">
    <button id="analyticsBtn">{{analytics_title}}</button>
    <button id="clearBtn">&#x2715;</button>
    <button id="logoutBtn">&#x23FB;</button>
  </div>
</div>
<div id="chatMessages"></div>
<div id="auth">
  <span>{{login_prompt}}</span>
  <input id="email" type="email" autocomplete="username" placeholder="email">
  <input id="password" type="password" autocomplete="current-password" placeholder="password">
  <button data-auth="login">Login</button>
  <button data-auth="register">Register</button>
</div>
<div id="input-area">
  <input id="messageInput" placeholder="{{placeholder}}" autocomplete="off">
  <button id="send" aria-label="Send">&#x27A4;</button>
</div>
<div id="analyticsModal"><div class="modal-body"><div id="analyticsBody"></div></div></div>
<script>
const msgs=document.getElementById("chatMessages"),
      input=document.getElementById("messageInput"),
      sendBtn=document.getElementById("send"),
      auth=document.getElementById("auth"),
      modal=document.getElementById("analyticsModal"),
      modalBody=document.getElementById("analyticsBody"),
      userName=document.getElementById("userName");
const clearPrompt={{clear_confirm_js}};
let view={revision:-1},lastScroll="";

function render(v){
  if(!v||v.revision<view.revision)return;
  view=v;
  msgs.innerHTML=v.html;
  input.disabled=!v.input_enabled;sendBtn.disabled=!v.input_enabled;
  auth.style.display=v.auth_prompt?"flex":"none";
  userName.textContent=v.user_name||"";
  if(v.analytics){modalBody.innerHTML=v.analytics.html;modal.style.display="flex"}else{modal.style.display="none"}
  if(v.scroll_to&&v.scroll_to!==lastScroll){lastScroll=v.scroll_to;msgs.scrollTop=msgs.scrollHeight}
}
async function post(ev){
  try{
    const r=await fetch("/widget/event",{method:"POST",headers:{"Content-Type":"application/json"},body:JSON.stringify(ev)});
    const d=await r.json();if(d.view)render(d.view);
  }catch(e){console.error(e)}
}
async function poll(){
  try{const r=await fetch("/widget/state");render(await r.json())}catch(e){console.error(e)}
}
function connect(){
  const ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/widget/ws");
  let open=false;
  ws.onopen=()=>{open=true};
  ws.onmessage=e=>render(JSON.parse(e.data));
  ws.onclose=()=>{if(!open){setInterval(poll,2000)}else{setTimeout(connect,1000)}};
}
function send(){
  const text=input.value.trim();
  if(!text||!view.input_enabled)return;
  input.value="";
  post({kind:"send",text:text});
}
msgs.addEventListener("click",e=>{
  const b=e.target.closest("[data-action]");if(!b)return;
  const id=parseInt(b.dataset.messageId,10);
  if(b.dataset.action==="rate")post({kind:"rate",message_id:id,rating:parseInt(b.dataset.rating,10)});
  if(b.dataset.action==="helpful")post({kind:"helpful",message_id:id,helpful:b.dataset.helpful==="true"});
});
auth.addEventListener("click",e=>{
  const kind=e.target.dataset.auth;if(!kind)return;
  post({kind:kind,email:document.getElementById("email").value,password:document.getElementById("password").value});
});
document.getElementById("analyticsBtn").onclick=()=>post({kind:"analytics"});
document.getElementById("clearBtn").onclick=()=>post({kind:"clear",confirmed:confirm(clearPrompt)});
document.getElementById("logoutBtn").onclick=()=>post({kind:"logout"});
modal.onclick=e=>{if(e.target===modal)post({kind:"close_analytics"})};
sendBtn.onclick=send;
input.onkeydown=e=>{if(e.key==="Enter"&&!e.shiftKey){e.preventDefault();send()}};
poll().then(connect);
</script>
</body>
</html>`
